package s7

import (
	"encoding/binary"
	"fmt"
)

// block-type codes used by the read_block_info User-Data request (spec §6).
const (
	blockTypeOB  = 0x38
	blockTypeDB  = 0x41
	blockTypeSDB = 0x42
	blockTypeFC  = 0x43
	blockTypeSFC = 0x44
	blockTypeFB  = 0x45
	blockTypeSFB = 0x46

	userDataSubfuncBlockInfo = 0x03
	userDataFuncGroupBlock   = 0x05
)

// BlockInfo is the cached MC7-length/local-data-size metadata read once
// per (area, block number) via read_block_info, and used afterwards to
// reject writes that would run past the end of an S7-300/400 DB (spec
// §4.6, §4.8). Such a write is not truncated to fit: its Tag gets a
// ProtocolError and nothing is sent for it.
type BlockInfo struct {
	BlockType   byte
	BlockNumber int
	LoadSize    int
	MC7Size     int // length of the block's data area, in bytes
}

// validate rejects a write whose offset+len would run past the end of
// the cached block, but only on S7-300/400 controllers — later families
// don't expose this limit the same way (Open Question: block clamp only
// applies when a BlockInfo is cached, i.e. only DB areas get checked).
func (b *BlockInfo) validate(addr Address, writeLen int) error {
	if addr.Offset+writeLen > b.MC7Size {
		return &ProtocolError{Reason: fmt.Sprintf(
			"write to DB%d offset %d len %d exceeds block size %d",
			addr.DBNumber, addr.Offset, writeLen, b.MC7Size)}
	}
	return nil
}

// blockClampLocked returns the cached BlockInfo for a DB write on an
// S7-300/400 controller, fetching and caching it on first use. Returns
// nil when no clamp applies (not a DB area, or not an S7-300/400).
func (c *Client) blockClampLocked(addr Address) *BlockInfo {
	if addr.Area != AreaDB || c.family != FamilyS300 {
		return nil
	}
	areaKey := "DB"
	if c.blockInfo[areaKey] == nil {
		c.blockInfo[areaKey] = make(map[int]*BlockInfo)
	}
	if info, ok := c.blockInfo[areaKey][addr.DBNumber]; ok {
		return info
	}
	info, err := c.readBlockInfoLocked(blockTypeDB, addr.DBNumber)
	if err != nil {
		c.log.Debugf("block info lookup failed for DB%d (continuing without clamp): %v", addr.DBNumber, err)
		return nil
	}
	c.blockInfo[areaKey][addr.DBNumber] = info
	return info
}

// ReadBlockInfo reads and caches MC7/load size metadata for one block
// (spec §6's read_block_info). Subsequent DB writes on an S7-300/400
// controller consult this cache and reject out-of-range writes.
func (c *Client) ReadBlockInfo(blockType byte, blockNumber int) (*BlockInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := requireAtLeast("ReadBlockInfo", c.state, PduNegotiated); err != nil {
		return nil, err
	}
	info, err := c.readBlockInfoLocked(blockType, blockNumber)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("block-type-0x%02X", blockType)
	if blockType == blockTypeDB {
		key = "DB" // the key blockClampLocked looks DB writes up under
	}
	if c.blockInfo[key] == nil {
		c.blockInfo[key] = make(map[int]*BlockInfo)
	}
	c.blockInfo[key][blockNumber] = info
	return info, nil
}

// readBlockInfoLocked issues a read_block_info User-Data request and
// parses the MC7/load size fields out of the reply (spec §6).
func (c *Client) readBlockInfoLocked(blockType byte, blockNumber int) (*BlockInfo, error) {
	params := buildUserDataParamHeaderFunc(userDataFuncGroupBlock, userDataMethodRequest, userDataSubfuncBlockInfo)
	numStr := fmt.Sprintf("%05d", blockNumber)
	data := []byte{0xFF, 0x09, 0x00, byte(len(numStr) + 1), blockType}
	data = append(data, []byte(numStr)...)

	_, body, err := c.exchangeRosctr(rosctrUserData, params, data)
	if err != nil {
		return nil, err
	}
	hdr, err := parseS7Header(body)
	if err != nil {
		return nil, err
	}
	if err := hdr.errorClassError(); err != nil {
		return nil, err
	}
	respData := hdr.Data(body)
	if len(respData) < 8+34 {
		return nil, &ProtocolError{Reason: "block info response too short"}
	}
	payload := respData[8:]
	return &BlockInfo{
		BlockType:   blockType,
		BlockNumber: blockNumber,
		LoadSize:    int(binary.BigEndian.Uint32(payload[2:6])),
		MC7Size:     int(binary.BigEndian.Uint32(payload[22:26])),
	}, nil
}

// buildUserDataParamHeaderFunc builds the 8-byte User-Data parameter
// header for a given function group / method / subfunction triple,
// generalising buildUserDataParamHeader (szl.go) beyond the fixed
// CPU_REQUEST/READ_SZL combination.
func buildUserDataParamHeaderFunc(funcGroup, method, subfunc byte) []byte {
	return []byte{0x00, 0x01, 0x12, funcGroup, method, subfunc, 0x00, 0x00}
}
