package pubsub

// KeyValue is a single named, dynamically typed connection property.
type KeyValue struct {
	Key   string
	Value any
}

// KeyValueList is an ordered set of connection properties. Order is
// preserved so that later duplicates win, matching the order the operator
// supplied them in.
type KeyValueList []KeyValue

// UInt32 returns the last value for key that carries an unsigned 32-bit
// integer. A value of the wrong type is treated as absent.
func (l KeyValueList) UInt32(key string) (uint32, bool) {
	var out uint32
	var found bool
	for _, kv := range l {
		if kv.Key != key {
			continue
		}
		if v, ok := kv.Value.(uint32); ok {
			out = v
			found = true
		}
	}
	return out, found
}

// String returns the last value for key that carries a string. A value of
// the wrong type is treated as absent.
func (l KeyValueList) String(key string) (string, bool) {
	var out string
	var found bool
	for _, kv := range l {
		if kv.Key != key {
			continue
		}
		if v, ok := kv.Value.(string); ok {
			out = v
			found = true
		}
	}
	return out, found
}

// ConnectionConfig describes one broker connection: a human-readable name,
// the endpoint locator, and the ordered property list consumed by the
// transport-specific channel implementation.
type ConnectionConfig struct {
	Name       string
	Address    string
	Properties KeyValueList
}
