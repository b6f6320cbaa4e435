package amqp010

// Class codes
const (
	classConnection uint8 = 0x01
	classSession    uint8 = 0x02
	classExecution  uint8 = 0x03
	classMessage    uint8 = 0x04
	classTx         uint8 = 0x05
	classDtx        uint8 = 0x06
	classExchange   uint8 = 0x07
	classQueue      uint8 = 0x08
	classFile       uint8 = 0x09
	classStream     uint8 = 0x0a
)

// classDef is one class of controls or commands. Commands carry a
// session header ahead of their packing flags; controls do not.
type classDef struct {
	name    string
	command bool
	methods map[uint8]*packedLayout
}

// method returns the layout for code, or nil.
func (c *classDef) method(code uint8) *packedLayout {
	return c.methods[code]
}

// LookupMethod returns the class and method names for a control or
// command code pair.
func LookupMethod(class, method uint8) (className, methodName string, ok bool) {
	c, ok := classes[class]
	if !ok {
		return "", "", false
	}
	m := c.method(method)
	if m == nil {
		return c.name, "", false
	}
	return c.name, m.name, true
}

var classes = map[uint8]*classDef{
	classConnection: {name: "connection", methods: map[uint8]*packedLayout{
		0x01: {name: "start", args: []argDef{
			{"server-properties", argMap},
			{"mechanisms", argArray},
			{"locales", argArray},
		}},
		0x02: {name: "start-ok", args: []argDef{
			{"client-properties", argMap},
			{"mechanism", argStr8},
			{"response", argVbin32},
			{"locale", argStr8},
		}},
		0x03: {name: "secure", args: []argDef{
			{"challenge", argVbin32},
		}},
		0x04: {name: "secure-ok", args: []argDef{
			{"response", argVbin32},
		}},
		0x05: {name: "tune", args: []argDef{
			{"channel-max", argUint16},
			{"max-frame-size", argUint16},
			{"heartbeat-min", argUint16},
			{"heartbeat-max", argUint16},
		}},
		0x06: {name: "tune-ok", args: []argDef{
			{"channel-max", argUint16},
			{"max-frame-size", argUint16},
			{"heartbeat", argUint16},
		}},
		0x07: {name: "open", args: []argDef{
			{"virtual-host", argStr8},
			{"capabilities", argArray},
			{"insist", argBit},
		}},
		0x08: {name: "open-ok", args: []argDef{
			{"known-hosts", argArray},
		}},
		0x09: {name: "redirect", args: []argDef{
			{"host", argStr16},
			{"known-hosts", argArray},
		}},
		0x0a: {name: "heartbeat"},
		0x0b: {name: "close", args: []argDef{
			{"reply-code", argUint16},
			{"reply-text", argStr8},
		}},
		0x0c: {name: "close-ok"},
	}},

	classSession: {name: "session", methods: map[uint8]*packedLayout{
		0x01: {name: "attach", args: []argDef{
			{"name", argVbin16},
			{"force", argBit},
		}},
		0x02: {name: "attached", args: []argDef{
			{"name", argVbin16},
		}},
		0x03: {name: "detach", args: []argDef{
			{"name", argVbin16},
		}},
		0x04: {name: "detached", args: []argDef{
			{"name", argVbin16},
			{"code", argUint8},
		}},
		0x05: {name: "request-timeout", args: []argDef{
			{"timeout", argUint32},
		}},
		0x06: {name: "timeout", args: []argDef{
			{"timeout", argUint32},
		}},
		0x07: {name: "command-point", args: []argDef{
			{"command-id", argSequenceNo},
			{"command-offset", argUint64},
		}},
		0x08: {name: "expected", args: []argDef{
			{"commands", argSequenceSet},
			{"fragments", argArray},
		}},
		0x09: {name: "confirmed", args: []argDef{
			{"commands", argSequenceSet},
			{"fragments", argArray},
		}},
		0x0a: {name: "completed", args: []argDef{
			{"commands", argSequenceSet},
			{"timely-reply", argBit},
		}},
		0x0b: {name: "known-completed", args: []argDef{
			{"commands", argSequenceSet},
		}},
		0x0c: {name: "flush", args: []argDef{
			{"expected", argBit},
			{"confirmed", argBit},
			{"completed", argBit},
		}},
		0x0d: {name: "gap", args: []argDef{
			{"commands", argSequenceSet},
		}},
	}},

	classExecution: {name: "execution", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "sync"},
		0x02: {name: "result", args: []argDef{
			{"command-id", argSequenceNo},
			{"value", argStruct32},
		}},
		0x03: {name: "exception", args: []argDef{
			{"error-code", argUint16},
			{"command-id", argSequenceNo},
			{"class-code", argUint8},
			{"command-code", argUint8},
			{"field-index", argUint8},
			{"description", argStr16},
			{"error-info", argMap},
		}},
	}},

	classMessage: {name: "message", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "transfer", args: []argDef{
			{"destination", argStr8},
			{"accept-mode", argUint8},
			{"acquire-mode", argUint8},
		}},
		0x02: {name: "accept", args: []argDef{
			{"transfers", argSequenceSet},
		}},
		0x03: {name: "reject", args: []argDef{
			{"transfers", argSequenceSet},
			{"code", argUint16},
			{"text", argStr8},
		}},
		0x04: {name: "release", args: []argDef{
			{"transfers", argSequenceSet},
			{"set-redelivered", argBit},
		}},
		0x05: {name: "acquire", args: []argDef{
			{"transfers", argSequenceSet},
		}},
		0x06: {name: "resume", args: []argDef{
			{"destination", argStr8},
			{"resume-id", argStr16},
		}},
		0x07: {name: "subscribe", args: []argDef{
			{"queue", argStr8},
			{"destination", argStr8},
			{"accept-mode", argUint8},
			{"acquire-mode", argUint8},
			{"exclusive", argBit},
			{"resume-id", argStr16},
			{"resume-ttl", argUint64},
			{"arguments", argMap},
		}},
		0x08: {name: "cancel", args: []argDef{
			{"destination", argStr8},
		}},
		0x09: {name: "set-flow-mode", args: []argDef{
			{"destination", argStr8},
			{"flow-mode", argUint8},
		}},
		0x0a: {name: "flow", args: []argDef{
			{"destination", argStr8},
			{"unit", argUint8},
			{"value", argUint32},
		}},
		0x0b: {name: "flush", args: []argDef{
			{"destination", argStr8},
		}},
		0x0c: {name: "stop", args: []argDef{
			{"destination", argStr8},
		}},
	}},

	classTx: {name: "tx", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "select"},
		0x02: {name: "commit"},
		0x03: {name: "rollback"},
	}},

	classDtx: {name: "dtx", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "select"},
		0x02: {name: "start", args: []argDef{
			{"xid", argXid},
			{"join", argBit},
			{"resume", argBit},
		}},
		0x03: {name: "end", args: []argDef{
			{"xid", argXid},
			{"fail", argBit},
			{"suspend", argBit},
		}},
		0x04: {name: "commit", args: []argDef{
			{"xid", argXid},
			{"one-phase", argBit},
		}},
		0x05: {name: "forget", args: []argDef{
			{"xid", argXid},
		}},
		0x06: {name: "get-timeout", args: []argDef{
			{"xid", argXid},
		}},
		0x07: {name: "prepare", args: []argDef{
			{"xid", argXid},
		}},
		0x08: {name: "recover"},
		0x09: {name: "rollback", args: []argDef{
			{"xid", argXid},
		}},
		0x0a: {name: "set-timeout", args: []argDef{
			{"xid", argXid},
			{"timeout", argUint32},
		}},
	}},

	classExchange: {name: "exchange", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "declare", args: []argDef{
			{"exchange", argStr8},
			{"type", argStr8},
			{"alternate-exchange", argStr8},
			{"passive", argBit},
			{"durable", argBit},
			{"auto-delete", argBit},
			{"arguments", argMap},
		}},
		0x02: {name: "delete", args: []argDef{
			{"exchange", argStr8},
			{"if-unused", argBit},
		}},
		0x03: {name: "query", args: []argDef{
			{"name", argStr8},
		}},
		0x04: {name: "bind", args: []argDef{
			{"queue", argStr8},
			{"exchange", argStr8},
			{"binding-key", argStr8},
			{"arguments", argMap},
		}},
		0x05: {name: "unbind", args: []argDef{
			{"queue", argStr8},
			{"exchange", argStr8},
			{"binding-key", argStr8},
		}},
		0x06: {name: "bound", args: []argDef{
			{"exchange", argStr8},
			{"queue", argStr8},
			{"binding-key", argStr8},
			{"arguments", argMap},
		}},
	}},

	classQueue: {name: "queue", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "declare", args: []argDef{
			{"queue", argStr8},
			{"alternate-exchange", argStr8},
			{"passive", argBit},
			{"durable", argBit},
			{"exclusive", argBit},
			{"auto-delete", argBit},
			{"arguments", argMap},
		}},
		0x02: {name: "delete", args: []argDef{
			{"queue", argStr8},
			{"if-unused", argBit},
			{"if-empty", argBit},
		}},
		0x03: {name: "purge", args: []argDef{
			{"queue", argStr8},
		}},
		0x04: {name: "query", args: []argDef{
			{"queue", argStr8},
		}},
	}},

	classFile: {name: "file", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "qos", args: []argDef{
			{"prefetch-size", argUint32},
			{"prefetch-count", argUint16},
			{"global", argBit},
		}},
		0x02: {name: "qos-ok"},
		0x03: {name: "consume", args: []argDef{
			{"queue", argStr8},
			{"consumer-tag", argStr8},
			{"no-local", argBit},
			{"no-ack", argBit},
			{"exclusive", argBit},
			{"nowait", argBit},
			{"arguments", argMap},
		}},
		0x04: {name: "consume-ok", args: []argDef{
			{"consumer-tag", argStr8},
		}},
		0x05: {name: "cancel", args: []argDef{
			{"consumer-tag", argStr8},
		}},
		0x06: {name: "open", args: []argDef{
			{"identifier", argStr8},
			{"content-size", argUint64},
		}},
		0x07: {name: "open-ok", args: []argDef{
			{"staged-size", argUint64},
		}},
		0x08: {name: "stage"},
		0x09: {name: "publish", args: []argDef{
			{"exchange", argStr8},
			{"routing-key", argStr8},
			{"mandatory", argBit},
			{"immediate", argBit},
			{"identifier", argStr8},
		}},
		0x0a: {name: "return", args: []argDef{
			{"reply-code", argUint16},
			{"reply-text", argStr8},
			{"exchange", argStr8},
			{"routing-key", argStr8},
		}},
		0x0b: {name: "deliver", args: []argDef{
			{"consumer-tag", argStr8},
			{"delivery-tag", argUint64},
			{"redelivered", argBit},
			{"exchange", argStr8},
			{"routing-key", argStr8},
			{"identifier", argStr8},
		}},
		0x0c: {name: "ack", args: []argDef{
			{"delivery-tag", argUint64},
			{"multiple", argBit},
		}},
		0x0d: {name: "reject", args: []argDef{
			{"delivery-tag", argUint64},
			{"requeue", argBit},
		}},
	}},

	classStream: {name: "stream", command: true, methods: map[uint8]*packedLayout{
		0x01: {name: "qos", args: []argDef{
			{"prefetch-size", argUint32},
			{"prefetch-count", argUint16},
			{"consume-rate", argUint32},
			{"global", argBit},
		}},
		0x02: {name: "qos-ok"},
		0x03: {name: "consume", args: []argDef{
			{"queue", argStr8},
			{"consumer-tag", argStr8},
			{"no-local", argBit},
			{"exclusive", argBit},
			{"nowait", argBit},
			{"arguments", argMap},
		}},
		0x04: {name: "consume-ok", args: []argDef{
			{"consumer-tag", argStr8},
		}},
		0x05: {name: "cancel", args: []argDef{
			{"consumer-tag", argStr8},
		}},
		0x06: {name: "publish", args: []argDef{
			{"exchange", argStr8},
			{"routing-key", argStr8},
			{"mandatory", argBit},
			{"immediate", argBit},
		}},
		0x07: {name: "return", args: []argDef{
			{"reply-code", argUint16},
			{"reply-text", argStr8},
			{"exchange", argStr8},
			{"routing-key", argStr8},
		}},
		0x08: {name: "deliver", args: []argDef{
			{"consumer-tag", argStr8},
			{"delivery-tag", argUint64},
			{"exchange", argStr8},
			{"queue", argStr8},
		}},
	}},
}
