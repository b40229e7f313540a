package s7

import "fmt"

// writeItem is the per-tag plan for one Write Variable item.
type writeItem struct {
	tag   *Tag
	plan  readItem // reuses the S7ANY addressing/transport-size logic
	bytes []byte   // encoded value to write
}

// WriteTags encodes each tag's Value and writes it, splitting into
// multiple PDU exchanges when the negotiated PDU size requires it (spec
// §4.6). Every tag gets its encode/write outcome back in its Err field;
// a failure on one tag does not stop the others in its batch from being
// attempted, but a batch is only sent once every item in it encoded
// successfully.
func (c *Client) WriteTags(tags []Tag) ([]Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("WriteTags", c.state, PduNegotiated); err != nil {
		return tags, err
	}

	items := make([]writeItem, 0, len(tags))
	for i := range tags {
		t := &tags[i]
		encoded, err := EncodeValue(t.Value, t.Type)
		if err != nil {
			t.Err = err
			continue
		}
		plan := planReadItem(t)
		plan.byteLen = len(encoded)
		if plan.transportSize != tsBIT && plan.transportSize != tsBYTE {
			plan.count = len(encoded) / elemSizeForTransport(plan.transportSize)
			if plan.count < 1 {
				plan.count = 1
			}
		} else if plan.transportSize == tsBYTE {
			plan.count = len(encoded)
		}
		if blk := c.blockClampLocked(t.Address); blk != nil {
			if err := blk.validate(t.Address, len(encoded)); err != nil {
				t.Err = err
				continue
			}
		}
		items = append(items, writeItem{tag: t, plan: plan, bytes: encoded})
	}

	budget := int(c.pduSize)
	if budget == 0 {
		budget = 480
	}
	for _, batch := range splitWriteBatches(items, budget) {
		if err := c.writeBatchLocked(batch); err != nil {
			for _, it := range batch {
				it.tag.Err = err
			}
		}
	}

	return tags, nil
}

// WriteAreaRaw writes data to addr without any type interpretation (spec
// §6's write_area_raw).
func (c *Client) WriteAreaRaw(addr string, data []byte) error {
	a, err := ParseAddress(addr)
	if err != nil {
		return err
	}
	tag := Tag{Address: a, Type: MakeArrayType(TypeByte), Value: append([]byte(nil), data...)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("WriteAreaRaw", c.state, PduNegotiated); err != nil {
		return err
	}
	plan := planReadItem(&tag)
	plan.byteLen = len(data)
	plan.count = len(data)
	budget := int(c.pduSize)
	if budget == 0 {
		budget = 480
	}
	for _, batch := range splitWriteBatches([]writeItem{{tag: &tag, plan: plan, bytes: data}}, budget) {
		if err := c.writeBatchLocked(batch); err != nil {
			return err
		}
	}
	return tag.Err
}

// splitWriteBatches mirrors splitReadBatches, but since the encoded
// payloads travel in the request itself, the whole request PDU (Job
// header, parameter section and data section) is kept within budget bytes
// (spec §4.6).
func splitWriteBatches(items []writeItem, budget int) [][]writeItem {
	const reqBase = 10 + readRequestOverhead // Job header + function/item count
	var batches [][]writeItem
	var cur []writeItem
	size := reqBase

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			size = reqBase
		}
	}

	for _, it := range items {
		itemBytes := s7AnyItemSize + 4 + len(it.bytes)
		if len(it.bytes)%2 == 1 {
			itemBytes++
		}
		if len(cur) > 0 && size+itemBytes > budget {
			flush()
		}
		cur = append(cur, it)
		size += itemBytes
	}
	flush()
	return batches
}

// writeBatchLocked sends one Write Variable request for batch and fans
// the per-item return codes back into each item's Tag.
func (c *Client) writeBatchLocked(batch []writeItem) error {
	params := []byte{s7FuncWrite, byte(len(batch))}
	var data []byte
	for i, it := range batch {
		params = append(params, it.plan.encodeS7Any()...)

		bitLen := len(it.bytes) * 8
		if it.plan.transportSize == tsBIT {
			bitLen = 1
		}
		data = append(data, 0x00, it.plan.transportSize, byte(bitLen>>8), byte(bitLen))
		data = append(data, it.bytes...)
		if i < len(batch)-1 && len(it.bytes)%2 == 1 {
			data = append(data, 0x00)
		}
	}

	hdr, body, err := c.exchange(params, data)
	if err != nil {
		return err
	}
	respData := hdr.Data(body)
	for i, it := range batch {
		if i >= len(respData) {
			it.tag.Err = &ProtocolError{Reason: fmt.Sprintf("write response missing item %d of %d", i+1, len(batch))}
			continue
		}
		if respData[i] != dataItemSuccess {
			it.tag.Err = &ReturnCodeError{Code: respData[i]}
		}
	}
	return nil
}
