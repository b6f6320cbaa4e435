//go:build gofuzz
// +build gofuzz

package amqp010

func FuzzConn(data []byte) int {
	c, err := NewConn()
	if err != nil {
		return 0
	}

	frames, err := c.Decode(data)
	if err != nil {
		return 0
	}
	if len(frames) == 0 {
		return 0
	}
	return 1
}

func FuzzValue(data []byte) int {
	if len(data) < 1 {
		return 0
	}

	opts := DefaultOptions()
	d, err := newDecoder(data, 1, len(data), &opts)
	if err != nil {
		return 0
	}

	if _, err := d.decodeValue("fuzz", data[0]); err != nil {
		return 0
	}
	return 1
}
