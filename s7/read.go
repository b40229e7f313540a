package s7

import (
	"encoding/binary"
	"fmt"
)

// S7ANY item descriptor and data-item wire constants (spec §4.5/§6).
const (
	s7FuncRead  = 0x04
	s7FuncWrite = 0x05

	s7AnySpecType = 0x12
	s7AnyLen      = 0x0A
	s7AnySyntaxID = 0x10

	tsBIT   = 0x01
	tsBYTE  = 0x02
	tsCHAR  = 0x03
	tsWORD  = 0x04
	tsINT   = 0x05
	tsDWORD = 0x06
	tsDINT  = 0x07
	tsREAL  = 0x08
	tsOctet = 0x09

	dataItemSuccess = 0xFF

	readRequestOverhead  = 2  // function + item count
	readResponseOverhead = 2  // function + item count, mirrored in the AckData reply
	s7AnyItemSize        = 12 // size of one S7ANY item descriptor

	// STRING two-phase read (spec §4.5): a STRING item never enters the
	// ordinary batch. The first raw read covers the 2-byte {maxLen,
	// actualLen} header plus stringFirstReadBody content bytes; a second
	// raw read is only issued when actualLen says there is more content
	// than that first read carried.
	stringFirstReadLen  = 128
	stringFirstReadBody = 126
)

// readItem is the per-tag plan built before a batch is sent: how many
// bytes the wire item occupies, and how to decode the bytes that come
// back into the Tag's Value.
type readItem struct {
	tag           *Tag
	areaCode      byte
	transportSize byte
	count         int // element count in the S7ANY item (bytes for BYTE transport, elements otherwise)
	dbNumber      int
	bitAddr       int
	byteLen       int // bytes expected in the response data section
}

// getTransportSize returns the S7ANY transport size code for t. isBit
// forces BIT regardless of t, for single-bit BOOL addresses.
func getTransportSize(t Type, isBit bool) byte {
	if isBit {
		return tsBIT
	}
	switch BaseType(t) {
	case TypeBool:
		return tsBIT
	case TypeByte, TypeSInt, TypeChar, TypeString, TypeWString:
		return tsBYTE
	case TypeWord, TypeInt, TypeDate, TypeS5Time, TypeCounter, TypeTimer:
		return tsWORD
	case TypeDWord, TypeDInt, TypeReal, TypeTime, TypeTimeOfDay:
		return tsDWORD
	case TypeLReal, TypeLInt, TypeULInt, TypeDateTime, TypeIECCounter, TypeIECTimer:
		return tsBYTE
	default:
		return tsBYTE
	}
}

// planReadItem works out the wire shape for reading one tag: area code,
// transport size, element count, and the expected response byte length.
func planReadItem(tag *Tag) readItem {
	addr := tag.Address
	isBit := addr.BitNum >= 0 && BaseType(tag.Type) == TypeBool
	ts := getTransportSize(tag.Type, isBit)

	byteLen := TypeSize(tag.Type)
	if byteLen == 0 {
		byteLen = 256 // WSTRING: read at a fixed max. STRING reads never reach here — ReadTags pulls them out of the batch (spec §4.5 two-phase path); WriteTags overrides byteLen with the encoded length.
	}
	count := byteLen
	if ts != tsBYTE && ts != tsBIT {
		count = byteLen / elemSizeForTransport(ts)
		if count < 1 {
			count = 1
		}
	}
	if isBit {
		count = 1
	}

	bitAddr := addr.Offset * 8
	if isBit {
		bitAddr += addr.BitNum
	}
	dbNumber := addr.DBNumber
	if addr.Area != AreaDB {
		dbNumber = 0
	}

	return readItem{
		tag:           tag,
		areaCode:      addr.Area.areaCode(),
		transportSize: ts,
		count:         count,
		dbNumber:      dbNumber,
		bitAddr:       bitAddr,
		byteLen:       byteLen,
	}
}

func elemSizeForTransport(ts byte) int {
	switch ts {
	case tsWORD, tsINT:
		return 2
	case tsDWORD, tsDINT, tsREAL:
		return 4
	default:
		return 1
	}
}

func (it readItem) encodeS7Any() []byte {
	return []byte{
		s7AnySpecType,
		s7AnyLen,
		s7AnySyntaxID,
		it.transportSize,
		byte(it.count >> 8), byte(it.count),
		byte(it.dbNumber >> 8), byte(it.dbNumber),
		it.areaCode,
		byte(it.bitAddr >> 16), byte(it.bitAddr >> 8), byte(it.bitAddr),
	}
}

// ReadTags reads every tag's Address/Type in as few PDU exchanges as the
// negotiated PDU size allows, splitting into multiple batches when the
// request or response would overflow it (spec §4.5). Tags are returned in
// the same order, each carrying either its decoded Value or a per-tag Err
// — a failure on one tag never aborts the batch for the others.
//
// STRING tags are not part of the batch at all: they are fetched one at a
// time through readStringTagLocked's two-phase raw read, per spec §4.5.
func (c *Client) ReadTags(tags []Tag) ([]Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("ReadTags", c.state, PduNegotiated); err != nil {
		return tags, err
	}

	var items []readItem
	for i := range tags {
		if BaseType(tags[i].Type) == TypeString {
			continue
		}
		items = append(items, planReadItem(&tags[i]))
	}

	budget := int(c.pduSize)
	if budget == 0 {
		budget = 480
	}
	for _, batch := range splitReadBatches(items, budget) {
		if err := c.readBatchLocked(batch); err != nil {
			for _, it := range batch {
				it.tag.Err = err
			}
		}
	}

	for i := range tags {
		if BaseType(tags[i].Type) == TypeString {
			c.readStringTagLocked(&tags[i])
		}
	}

	return tags, nil
}

// readStringTagLocked fetches one STRING tag via the two-phase raw read
// spec §4.5 requires instead of folding it into the ordinary S7ANY batch:
// a first raw read of stringFirstReadLen bytes, parsed as {maxLen(1),
// actualLen(1), bytes(stringFirstReadBody)}; only when actualLen says there
// is more content than that first read carried does a second raw read go
// out, picking up immediately after the first stringFirstReadLen bytes
// already on the wire (spec's "offset+126" names the 126 content bytes
// already read, not a second wire address — the wire continuation point is
// the header's 2 bytes plus those 126, i.e. stringFirstReadLen).
func (c *Client) readStringTagLocked(tag *Tag) {
	first, err := c.readRawAtLocked(tag.Address, 0, stringFirstReadLen)
	if err != nil {
		tag.Err = err
		return
	}
	if len(first) < 2 {
		tag.Err = &DataTypeError{Type: tag.Type, Reason: "STRING read shorter than header"}
		return
	}
	actualLen := int(first[1])
	content := append([]byte(nil), first[2:]...)
	if len(content) > stringFirstReadBody {
		content = content[:stringFirstReadBody]
	}
	if actualLen > stringFirstReadBody {
		rest, err := c.readRawAtLocked(tag.Address, stringFirstReadLen, actualLen-stringFirstReadBody)
		if err != nil {
			tag.Err = err
			return
		}
		content = append(content, rest...)
	}
	if actualLen > len(content) {
		actualLen = len(content)
	}
	tag.Value = string(content[:actualLen])
	tag.Size = 2 + actualLen
}

// readRawAtLocked reads length raw bytes from addr, offset by extraOffset
// bytes, without any type interpretation — the building block both
// ReadAreaRaw and the STRING two-phase path (spec §4.5) share. The bytes
// are requested as a single S7ANY item in one exchange; a length that does
// not fit the negotiated PDU size is not split into several reads.
func (c *Client) readRawAtLocked(addr Address, extraOffset, length int) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	rawAddr := addr
	rawAddr.Offset += extraOffset
	rawAddr.BitNum = -1
	tag := Tag{Address: rawAddr, Type: MakeArrayType(TypeByte)}
	item := planReadItem(&tag)
	item.byteLen = length
	item.count = length

	budget := int(c.pduSize)
	if budget == 0 {
		budget = 480
	}
	for _, batch := range splitReadBatches([]readItem{item}, budget) {
		if err := c.readBatchLocked(batch); err != nil {
			return nil, err
		}
	}
	if tag.Err != nil {
		return nil, tag.Err
	}
	raw, _ := tag.Value.([]byte)
	return raw, nil
}

// ReadAreaRaw reads length raw bytes from addr without any type
// interpretation, for callers that want to decode the bytes themselves
// (spec §6's read_area_raw).
func (c *Client) ReadAreaRaw(addr string, length int) ([]byte, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("ReadAreaRaw", c.state, PduNegotiated); err != nil {
		return nil, err
	}
	return c.readRawAtLocked(a, 0, length)
}

// splitReadBatches groups items so that neither the request PDU (Job
// header plus parameter section) nor the expected reply PDU (AckData
// header, parameter section and data section) exceeds budget bytes
// (spec §4.5's PDU-size-aware splitting).
func splitReadBatches(items []readItem, budget int) [][]readItem {
	const reqBase = 10 + readRequestOverhead   // Job header + function/item count
	const respBase = 12 + readResponseOverhead // AckData header + function/item count
	var batches [][]readItem
	var cur []readItem
	paramBytes := reqBase
	dataBytes := respBase

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			paramBytes = reqBase
			dataBytes = respBase
		}
	}

	for _, it := range items {
		itemDataBytes := 4 + it.byteLen
		if it.byteLen%2 == 1 {
			itemDataBytes++
		}
		if len(cur) > 0 && (paramBytes+s7AnyItemSize > budget || dataBytes+itemDataBytes > budget) {
			flush()
		}
		cur = append(cur, it)
		paramBytes += s7AnyItemSize
		dataBytes += itemDataBytes
	}
	flush()
	return batches
}

// readBatchLocked sends one Read Variable request for batch and fans the
// decoded (or per-item-errored) results back into each item's Tag.
func (c *Client) readBatchLocked(batch []readItem) error {
	params := []byte{s7FuncRead, byte(len(batch))}
	for _, it := range batch {
		params = append(params, it.encodeS7Any()...)
	}

	hdr, body, err := c.exchange(params, nil)
	if err != nil {
		return err
	}
	data := hdr.Data(body)

	pos := 0
	for i, it := range batch {
		if pos >= len(data) {
			it.tag.Err = &ProtocolError{Reason: fmt.Sprintf("read response missing item %d of %d", i+1, len(batch))}
			continue
		}
		returnCode := data[pos]
		if returnCode != dataItemSuccess {
			it.tag.Err = &ReturnCodeError{Code: returnCode}
			pos++
			continue
		}
		if pos+4 > len(data) {
			it.tag.Err = &ProtocolError{Reason: "read response item header too short"}
			break
		}
		respByteLen := itemByteLen(data[pos+1], binary.BigEndian.Uint16(data[pos+2:pos+4]))
		pos += 4
		if pos+respByteLen > len(data) {
			it.tag.Err = &ProtocolError{Reason: "read response item data truncated"}
			break
		}
		raw := data[pos : pos+respByteLen]
		pos += respByteLen
		if i < len(batch)-1 && respByteLen%2 == 1 {
			pos++
		}

		bitNum := -1
		if it.transportSize == tsBIT {
			bitNum = it.tag.Address.BitNum
			if bitNum < 0 {
				bitNum = 0
			}
		}
		v, err := DecodeValue(raw, it.tag.Type, bitNum)
		if err != nil {
			it.tag.Err = err
			continue
		}
		it.tag.Value = v
		it.tag.Size = respByteLen
	}
	return nil
}

// itemByteLen converts a response item's declared length into bytes: an
// octet-string transport size carries a byte length directly, every other
// transport size carries a bit length (spec §4.5).
func itemByteLen(transportSize byte, length uint16) int {
	if transportSize == tsOctet {
		return int(length)
	}
	return int((length + 7) / 8)
}

