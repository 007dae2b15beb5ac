// Package gguf reads just enough of a GGUF model file to validate it and
// surface identifying metadata before a runtime parses any weights.
package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const magic = "GGUF"

// Versions accepted by the preflight check.
const (
	minVersion = 2
	maxVersion = 3
)

// Sanity caps: a malformed header must fail fast, not allocate gigabytes.
const (
	maxKVPairs   = 1 << 16
	maxStringLen = 1 << 20
	maxArrayLen  = 1 << 24
)

type valueType uint32

const (
	typeUint8   valueType = 0
	typeInt8    valueType = 1
	typeUint16  valueType = 2
	typeInt16   valueType = 3
	typeUint32  valueType = 4
	typeInt32   valueType = 5
	typeFloat32 valueType = 6
	typeBool    valueType = 7
	typeString  valueType = 8
	typeArray   valueType = 9
	typeUint64  valueType = 10
	typeInt64   valueType = 11
	typeFloat64 valueType = 12
)

// Info is the header summary returned by ReadInfo.
type Info struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
	// Arch is general.architecture (e.g. "llama"), empty if absent.
	Arch string
	// Name is general.name, empty if absent.
	Name string
}

// Validate performs the cheap preflight: magic and version only. It is
// what load_model runs before handing the file to a runtime.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return fmt.Errorf("short GGUF header: %w", err)
	}
	if string(hdr[:4]) != magic {
		return fmt.Errorf("invalid magic %q", string(hdr[:4]))
	}
	v := binary.LittleEndian.Uint32(hdr[4:])
	if v < minVersion || v > maxVersion {
		return fmt.Errorf("unsupported GGUF version %d", v)
	}
	return nil
}

// ReadInfo parses the header and key/value section, skipping values it
// does not care about.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Info{}, fmt.Errorf("short GGUF header: %w", err)
	}
	if string(hdr[:]) != magic {
		return Info{}, fmt.Errorf("invalid magic %q", string(hdr[:]))
	}
	var info Info
	if err := binary.Read(r, binary.LittleEndian, &info.Version); err != nil {
		return Info{}, err
	}
	if info.Version < minVersion || info.Version > maxVersion {
		return Info{}, fmt.Errorf("unsupported GGUF version %d", info.Version)
	}
	if err := binary.Read(r, binary.LittleEndian, &info.TensorCount); err != nil {
		return Info{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &info.KVCount); err != nil {
		return Info{}, err
	}
	if info.KVCount > maxKVPairs {
		return Info{}, fmt.Errorf("implausible kv count %d", info.KVCount)
	}

	for i := uint64(0); i < info.KVCount; i++ {
		key, err := readString(r)
		if err != nil {
			return Info{}, fmt.Errorf("kv %d key: %w", i, err)
		}
		var vt uint32
		if err := binary.Read(r, binary.LittleEndian, &vt); err != nil {
			return Info{}, err
		}
		switch key {
		case "general.architecture", "general.name":
			if valueType(vt) != typeString {
				if err := skipValue(r, valueType(vt)); err != nil {
					return Info{}, err
				}
				continue
			}
			s, err := readString(r)
			if err != nil {
				return Info{}, err
			}
			if key == "general.architecture" {
				info.Arch = strings.TrimSpace(s)
			} else {
				info.Name = strings.TrimSpace(s)
			}
		default:
			if err := skipValue(r, valueType(vt)); err != nil {
				return Info{}, fmt.Errorf("kv %q: %w", key, err)
			}
		}
	}
	return info, nil
}

func readString(r *bufio.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("implausible string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func skipValue(r *bufio.Reader, vt valueType) error {
	switch vt {
	case typeUint8, typeInt8, typeBool:
		return discard(r, 1)
	case typeUint16, typeInt16:
		return discard(r, 2)
	case typeUint32, typeInt32, typeFloat32:
		return discard(r, 4)
	case typeUint64, typeInt64, typeFloat64:
		return discard(r, 8)
	case typeString:
		_, err := readString(r)
		return err
	case typeArray:
		var elem uint32
		if err := binary.Read(r, binary.LittleEndian, &elem); err != nil {
			return err
		}
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return err
		}
		if n > maxArrayLen {
			return fmt.Errorf("implausible array length %d", n)
		}
		for i := uint64(0); i < n; i++ {
			if err := skipValue(r, valueType(elem)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown value type %d", vt)
	}
}

func discard(r *bufio.Reader, n int) error {
	_, err := r.Discard(n)
	return err
}
