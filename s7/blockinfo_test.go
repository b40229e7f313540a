package s7

import "testing"

func TestBlockInfoValidate(t *testing.T) {
	b := &BlockInfo{BlockType: blockTypeDB, BlockNumber: 1, MC7Size: 100}
	if err := b.validate(Address{Area: AreaDB, DBNumber: 1, Offset: 50}, 50); err != nil {
		t.Errorf("validate(fits exactly) error: %v", err)
	}
	if err := b.validate(Address{Area: AreaDB, DBNumber: 1, Offset: 50}, 51); err == nil {
		t.Error("validate(overruns block) error = nil, want error")
	}
}

func TestBlockClampLockedOnlyAppliesToS300DB(t *testing.T) {
	c := NewClient(Endpoint{Host: "plc"})
	c.family = FamilyS1500
	if info := c.blockClampLocked(Address{Area: AreaDB, DBNumber: 1}); info != nil {
		t.Errorf("blockClampLocked() on S7-1500 = %+v, want nil", info)
	}

	c.family = FamilyS300
	if info := c.blockClampLocked(Address{Area: AreaM}); info != nil {
		t.Errorf("blockClampLocked() on non-DB area = %+v, want nil", info)
	}
}

func TestReadBlockInfo(t *testing.T) {
	c, _ := newPipeClient(t, 240, func(hdr s7Header, body []byte) []byte {
		payload := make([]byte, 8+34)
		payload[0], payload[1] = 0xFF, 0x09 // return code, transport size, as in the request header
		putU32 := func(off, v int) {
			payload[8+off] = byte(v >> 24)
			payload[8+off+1] = byte(v >> 16)
			payload[8+off+2] = byte(v >> 8)
			payload[8+off+3] = byte(v)
		}
		putU32(2, 128)  // LoadSize
		putU32(22, 100) // MC7Size
		return buildS7AckData(hdr.PDURef, buildUserDataParamHeaderFunc(userDataFuncGroupBlock, userDataMethodRequest, userDataSubfuncBlockInfo), payload)
	})
	defer c.Close()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	info, err := c.ReadBlockInfo(blockTypeDB, 1)
	if err != nil {
		t.Fatalf("ReadBlockInfo() error: %v", err)
	}
	if info.LoadSize != 128 {
		t.Errorf("LoadSize = %d, want 128", info.LoadSize)
	}
	if info.MC7Size != 100 {
		t.Errorf("MC7Size = %d, want 100", info.MC7Size)
	}
}
