package store

// Key layout, per entity prefix ("book:", "review:", ...):
//
//	book:<id>                              record
//	book:idx:<index>:<value>               unique index, value -> id
//	book:idx:<index>:<value>:<id>          non-unique index entry, scanned by prefix
//
// Ids are nanoids and never contain ':'.

const indexSegment = "idx:"

func recordKey(prefix, id string) []byte {
	buf := make([]byte, 0, len(prefix)+len(id))
	buf = append(buf, prefix...)
	return append(buf, id...)
}

func uniqueKey(prefix, index, value string) []byte {
	buf := make([]byte, 0, len(prefix)+len(indexSegment)+len(index)+len(value)+1)
	buf = append(buf, prefix...)
	buf = append(buf, indexSegment...)
	buf = append(buf, index...)
	buf = append(buf, ':')
	return append(buf, value...)
}

func memberPrefix(prefix, index, value string) []byte {
	return append(uniqueKey(prefix, index, value), ':')
}

func memberKey(prefix, index, value, id string) []byte {
	return append(memberPrefix(prefix, index, value), id...)
}

// isIndexKey reports whether key belongs to an index rather than a record.
func isIndexKey(prefix string, key []byte) bool {
	rest := key[len(prefix):]
	return len(rest) >= len(indexSegment) && string(rest[:len(indexSegment)]) == indexSegment
}
