package amqp010

// structKey selects a struct32 decoder.
type structKey struct {
	class uint8
	code  uint8
}

// LookupStruct returns the name of the struct identified by a
// (class, struct) code pair.
func LookupStruct(class, code uint8) (string, bool) {
	l, ok := structs[structKey{class: class, code: code}]
	if !ok {
		return "", false
	}
	return l.name, true
}

var structs = map[structKey]*packedLayout{
	{classMessage, 0x01}: {name: "delivery-properties", args: []argDef{
		{"discard-unroutable", argBit},
		{"immediate", argBit},
		{"redelivered", argBit},
		{"priority", argUint8},
		{"delivery-mode", argUint8},
		{"ttl", argUint64},
		{"timestamp", argDatetime},
		{"expiration", argDatetime},
		{"exchange", argStr8},
		{"routing-key", argStr8},
		{"resume-id", argStr16},
		{"resume-ttl", argUint64},
	}},
	{classMessage, 0x02}: {name: "fragment-properties", args: []argDef{
		{"first", argBit},
		{"last", argBit},
		{"fragment-size", argUint64},
	}},
	{classMessage, 0x03}: {name: "message-properties", args: []argDef{
		{"content-length", argUint64},
		{"message-id", argUUID},
		{"correlation-id", argVbin16},
		{"reply-to", argReplyTo},
		{"content-type", argStr8},
		{"content-encoding", argStr8},
		{"user-id", argVbin16},
		{"app-id", argVbin16},
		{"application-headers", argMap},
	}},
	{classMessage, 0x04}: {name: "acquired", args: []argDef{
		{"transfers", argSequenceSet},
	}},
	{classMessage, 0x05}: {name: "resume-result", args: []argDef{
		{"offset", argUint64},
	}},

	{classDtx, 0x01}: {name: "xa-result", args: []argDef{
		{"status", argUint16},
	}},
	{classDtx, 0x03}: {name: "recover-result", args: []argDef{
		{"in-doubt", argArray},
	}},

	{classExchange, 0x01}: {name: "exchange-query-result", args: []argDef{
		{"type", argStr8},
		{"durable", argBit},
		{"not-found", argBit},
		{"arguments", argMap},
	}},
	{classExchange, 0x02}: {name: "exchange-bound-result", args: []argDef{
		{"exchange-not-found", argBit},
		{"queue-not-found", argBit},
		{"queue-not-matched", argBit},
		{"key-not-matched", argBit},
		{"args-not-matched", argBit},
	}},

	{classQueue, 0x01}: {name: "queue-query-result", args: []argDef{
		{"queue", argStr8},
		{"alternate-exchange", argStr8},
		{"durable", argBit},
		{"exclusive", argBit},
		{"auto-delete", argBit},
		{"arguments", argMap},
		{"message-count", argUint32},
		{"subscriber-count", argUint32},
	}},

	{classFile, 0x01}: {name: "file-properties", args: []argDef{
		{"content-type", argStr8},
		{"content-encoding", argStr8},
		{"headers", argMap},
		{"priority", argUint8},
		{"reply-to", argStr8},
		{"message-id", argStr8},
		{"filename", argStr8},
		{"timestamp", argDatetime},
		{"cluster-id", argStr8},
	}},

	{classStream, 0x01}: {name: "stream-properties", args: []argDef{
		{"content-type", argStr8},
		{"content-encoding", argStr8},
		{"headers", argMap},
		{"priority", argUint8},
		{"timestamp", argDatetime},
	}},
}

// Packed structs carried with a 2-octet size and no class/struct code.
var (
	xidLayout = &packedLayout{name: "xid", args: []argDef{
		{"format", argUint32},
		{"global-id", argVbin8},
		{"branch-id", argVbin8},
	}}
	replyToLayout = &packedLayout{name: "reply-to", args: []argDef{
		{"exchange", argStr8},
		{"routing-key", argStr8},
	}}
)
