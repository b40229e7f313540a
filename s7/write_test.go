package s7

import "testing"

func TestSplitWriteBatchesRespectsBudget(t *testing.T) {
	items := make([]writeItem, 20)
	for i := range items {
		items[i] = writeItem{bytes: make([]byte, 4)}
	}
	batches := splitWriteBatches(items, 50)
	if len(batches) < 2 {
		t.Fatalf("splitWriteBatches() produced %d batch(es), want multiple for a tight budget", len(batches))
	}
	var total int
	for _, b := range batches {
		total += len(b)
	}
	if total != len(items) {
		t.Errorf("splitWriteBatches() dropped items: got %d total, want %d", total, len(items))
	}
}

// TestWriteTagsSuccess exercises WriteTags end-to-end: one BOOL and one
// WORD tag written in a single batch, fake PLC acking both.
func TestWriteTagsSuccess(t *testing.T) {
	c, _ := newPipeClient(t, 480, func(hdr s7Header, body []byte) []byte {
		params := hdr.Params(body)
		if len(params) == 0 || params[0] != s7FuncWrite {
			return buildS7AckData(hdr.PDURef, nil, nil)
		}
		n := int(params[1])
		data := make([]byte, n)
		for i := range data {
			data[i] = dataItemSuccess
		}
		return buildS7AckData(hdr.PDURef, []byte{s7FuncWrite, byte(n)}, data)
	})
	defer c.Close()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	boolTag, _ := NewTag("run", "M0.0", TypeBool)
	boolTag.Value = true
	wordTag, _ := NewTag("speed", "DB1.DBW0", TypeWord)
	wordTag.Value = uint16(1000)

	got, err := c.WriteTags([]Tag{boolTag, wordTag})
	if err != nil {
		t.Fatalf("WriteTags() error: %v", err)
	}
	for i, tg := range got {
		if tg.Err != nil {
			t.Errorf("tag %d error: %v", i, tg.Err)
		}
	}
}

func TestWriteTagsEncodeFailureIsPerTag(t *testing.T) {
	c, _ := newPipeClient(t, 480, func(hdr s7Header, body []byte) []byte {
		return buildS7AckData(hdr.PDURef, nil, nil)
	})
	defer c.Close()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	badTag, _ := NewTag("run", "M0.0", TypeBool)
	badTag.Value = "not a bool"

	got, err := c.WriteTags([]Tag{badTag})
	if err != nil {
		t.Fatalf("WriteTags() error: %v", err)
	}
	if got[0].Err == nil {
		t.Error("expected encode error on bad value type")
	}
}

func TestWriteAreaRaw(t *testing.T) {
	c, _ := newPipeClient(t, 480, func(hdr s7Header, body []byte) []byte {
		params := hdr.Params(body)
		if len(params) == 0 || params[0] != s7FuncWrite {
			return buildS7AckData(hdr.PDURef, nil, nil)
		}
		return buildS7AckData(hdr.PDURef, []byte{s7FuncWrite, 0x01}, []byte{dataItemSuccess})
	})
	defer c.Close()
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if err := c.WriteAreaRaw("DB1.DBB0", []byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("WriteAreaRaw() error: %v", err)
	}
}
