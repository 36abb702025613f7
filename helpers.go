package irc

// Decode decodes a line of IRC text into a Message struct. line must not end with line endings \r\n.
func Decode(line []byte) (*Message, error) {
	m := new(Message)
	err := m.UnmarshalText(line)
	return m, err
}

// Encode encodes a message to be sent on an IRC connection.
func Encode(command string, params ...string) ([]byte, error) {
	m := NewMessage(Command(command), params...)
	return m.MarshalText()
}
