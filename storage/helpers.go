package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/mixvote/types"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	data, err := encMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// Keys are big-endian so that prefix iteration follows numeric order.

func electionKey(id types.ElectionID) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(id))
}

func voterKey(id types.ElectionID, voter common.Address) []byte {
	return append(electionKey(id), voter.Bytes()...)
}

func ballotKey(id types.ElectionID, index types.BallotIndex) []byte {
	return binary.BigEndian.AppendUint32(electionKey(id), uint32(index))
}

func jobKey(id types.JobID) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

// singletonKey is used for the prefixes holding a single value.
var singletonKey = []byte{0}
