package db

import "github.com/raddi-network/raddi/raddi"

func putU48(b []byte, v uint64) {
	for i := 0; i < 6; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU48(b []byte) uint64 {
	var v uint64
	for i := 0; i < 6; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func putU16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func getU16(b []byte) uint16    { return uint16(b[0]) | uint16(b[1])<<8 }

func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLocation(b []byte, l Location) {
	putU48(b[0:6], l.Offset)
	putU16(b[6:8], uint16(l.Length))
}
func getLocation(b []byte) Location {
	return Location{Offset: getU48(b[0:6]), Length: uint32(getU16(b[6:8]))}
}

// DataRowCodec is the Codec for the data table (all ordinary entries).
var DataRowCodec = Codec[DataRow]{
	RowSize: 16 + 16 + 8 + 32 + 1,
	Encode: func(r DataRow) []byte {
		buf := make([]byte, 73)
		copy(buf[0:16], r.ID.MarshalBinary())
		copy(buf[16:32], r.Parent.MarshalBinary())
		putLocation(buf[32:40], r.Location)
		copy(buf[40:56], r.Root.Channel.MarshalBinary())
		copy(buf[56:72], r.Root.Thread.MarshalBinary())
		buf[72] = byte(r.Type)
		return buf
	},
	Decode: func(b []byte) DataRow {
		id, _ := raddi.UnmarshalEID(b[0:16])
		parent, _ := raddi.UnmarshalEID(b[16:32])
		loc := getLocation(b[32:40])
		channel, _ := raddi.UnmarshalEID(b[40:56])
		thread, _ := raddi.UnmarshalEID(b[56:72])
		return DataRow{ID: id, Parent: parent, Location: loc, Root: raddi.Root{Channel: channel, Thread: thread}, Type: ContentType(b[72])}
	},
	Timestamp:  func(r DataRow) uint32 { return uint32(r.ID.Timestamp) },
	Less:       func(a, b DataRow) bool { return a.ID.Less(b.ID) },
	MarkErased: func(r DataRow) DataRow { return r.Zero() },
	IsErased:   func(r DataRow) bool { return r.Erased() },
	Location:   func(r DataRow) Location { return r.Location },
	SetLocation: func(r DataRow, l Location) DataRow { r.Location = l; return r },
}

// ThreadRowCodec is the Codec for the threads table.
var ThreadRowCodec = Codec[ThreadRow]{
	RowSize: 16 + 16 + 8,
	Encode: func(r ThreadRow) []byte {
		buf := make([]byte, 40)
		copy(buf[0:16], r.ID.MarshalBinary())
		copy(buf[16:32], r.Parent.MarshalBinary())
		putLocation(buf[32:40], r.Location)
		return buf
	},
	Decode: func(b []byte) ThreadRow {
		id, _ := raddi.UnmarshalEID(b[0:16])
		parent, _ := raddi.UnmarshalEID(b[16:32])
		return ThreadRow{ID: id, Parent: parent, Location: getLocation(b[32:40])}
	},
	Timestamp:  func(r ThreadRow) uint32 { return uint32(r.ID.Timestamp) },
	Less:       func(a, b ThreadRow) bool { return a.ID.Less(b.ID) },
	MarkErased: func(r ThreadRow) ThreadRow { return r.Zero() },
	IsErased:   func(r ThreadRow) bool { return r.Erased() },
	Location:   func(r ThreadRow) Location { return r.Location },
	SetLocation: func(r ThreadRow, l Location) ThreadRow { r.Location = l; return r },
}

// ChannelRowCodec is the Codec for the channels table.
var ChannelRowCodec = Codec[ChannelRow]{
	RowSize: 16 + 8,
	Encode: func(r ChannelRow) []byte {
		buf := make([]byte, 24)
		copy(buf[0:16], r.ID.MarshalBinary())
		putLocation(buf[16:24], r.Location)
		return buf
	},
	Decode: func(b []byte) ChannelRow {
		id, _ := raddi.UnmarshalEID(b[0:16])
		return ChannelRow{ID: id, Location: getLocation(b[16:24])}
	},
	Timestamp:  func(r ChannelRow) uint32 { return uint32(r.ID.Timestamp) },
	Less:       func(a, b ChannelRow) bool { return a.ID.Less(b.ID) },
	MarkErased: func(r ChannelRow) ChannelRow { return r.Zero() },
	IsErased:   func(r ChannelRow) bool { return r.Erased() },
	Location:   func(r ChannelRow) Location { return r.Location },
	SetLocation: func(r ChannelRow, l Location) ChannelRow { r.Location = l; return r },
}

// IdentityRowCodec is the Codec for the identities table.
var IdentityRowCodec = Codec[IdentityRow]{
	RowSize: 8 + 8,
	Encode: func(r IdentityRow) []byte {
		buf := make([]byte, 16)
		copy(buf[0:8], r.ID.MarshalBinary())
		putLocation(buf[8:16], r.Location)
		return buf
	},
	Decode: func(b []byte) IdentityRow {
		id, _ := raddi.UnmarshalIID(b[0:8])
		return IdentityRow{ID: id, Location: getLocation(b[8:16])}
	},
	Timestamp:  func(r IdentityRow) uint32 { return uint32(r.ID.Timestamp) },
	Less:       func(a, b IdentityRow) bool { return a.ID.Less(b.ID) },
	MarkErased: func(r IdentityRow) IdentityRow { return r.Zero() },
	IsErased:   func(r IdentityRow) bool { return r.Erased() },
	Location:   func(r IdentityRow) Location { return r.Location },
	SetLocation: func(r IdentityRow, l Location) IdentityRow { r.Location = l; return r },
}
