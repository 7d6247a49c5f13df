package raddi

// Channel is the decoded content of a channel-announcing entry: just a
// display name, with the owning identity carried by the entry's parent
// field rather than the content.
type Channel struct {
	Name string
}

// Validate checks the channel name against MaxChannelNameSize.
func (c Channel) Validate() error {
	if len(c.Name) > MaxChannelNameSize {
		return ErrContentTooLarge
	}
	return nil
}

// Encode serializes the channel announcement content: the UTF-8 name, with
// no length prefix.
func (c Channel) Encode() []byte {
	return []byte(c.Name)
}

// DecodeChannel parses the content of a channel-announcing entry.
func DecodeChannel(content []byte) Channel {
	return Channel{Name: string(content)}
}
