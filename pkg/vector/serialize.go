package vector

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// Blob layout: magic "EGIX", uint32 version, uint32 dimension, uint32 row
// count, then rows of little-endian float32. The file is always written and
// read in full; partial updates are never applied in place.
var blobMagic = [4]byte{'E', 'G', 'I', 'X'}

const blobVersion uint32 = 1

// Save serializes the index to path. The blob is written to a temporary file
// in the same directory and renamed over path, so readers never observe a
// torn write.
func (x *Index) Save(path string) error {
	var buf bytes.Buffer
	buf.Write(blobMagic[:])

	header := []uint32{blobVersion, uint32(x.dim), uint32(len(x.vectors))}
	for _, v := range header {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return goerr.Wrap(err, "failed to encode index header")
		}
	}
	for _, vec := range x.vectors {
		if err := binary.Write(&buf, binary.LittleEndian, vec); err != nil {
			return goerr.Wrap(err, "failed to encode index row")
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary index file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write index blob", goerr.V("path", path))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close index blob", goerr.V("path", path))
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return goerr.Wrap(err, "failed to replace index blob", goerr.V("path", path))
	}
	return nil
}

// Load reads a serialized index from path. A missing file is not an error:
// it returns a fresh empty index, matching a store that never persisted.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, goerr.Wrap(err, "failed to read index blob", goerr.V("path", path))
	}

	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != blobMagic {
		return nil, goerr.New("index blob has invalid magic", goerr.V("path", path))
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, goerr.Wrap(err, "failed to decode index header", goerr.V("path", path))
		}
	}
	if version != blobVersion {
		return nil, goerr.New("unsupported index blob version", goerr.V("version", version))
	}

	x := &Index{dim: int(dim)}
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, goerr.Wrap(err, "index blob is truncated",
				goerr.V("path", path), goerr.V("row", i))
		}
		x.vectors = append(x.vectors, vec)
	}

	return x, nil
}
