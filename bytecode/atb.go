package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/atlas-lang/atlas/object"
	"github.com/atlas-lang/atlas/token"
)

// The .atb container: magic, a format version, a flags byte, the constant
// pool, the instruction stream, and optionally the debug span table. All
// integers are big-endian.

var atbMagic = [4]byte{'A', 'T', 'B', 0}

const (
	atbVersion uint16 = 1

	flagDebugInfo uint8 = 1 << 0
)

// Constant tags.
const (
	tagNumber   uint8 = 0
	tagString   uint8 = 1
	tagBool     uint8 = 2
	tagNull     uint8 = 3
	tagFunction uint8 = 4
)

// MarshalBinary encodes the bytecode into the .atb format. The debug table
// is included only when withDebugInfo is true.
func (b *Bytecode) MarshalBinary(withDebugInfo bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(atbMagic[:])
	writeU16(&buf, atbVersion)

	var flags uint8
	if withDebugInfo {
		flags |= flagDebugInfo
	}
	buf.WriteByte(flags)

	writeU32(&buf, uint32(len(b.Constants)))
	for _, c := range b.Constants {
		if err := writeConstant(&buf, c); err != nil {
			return nil, err
		}
	}

	writeU32(&buf, uint32(len(b.Instructions)))
	buf.Write(b.Instructions)

	if withDebugInfo {
		writeU32(&buf, uint32(len(b.DebugInfo)))
		for _, e := range b.DebugInfo {
			writeU32(&buf, uint32(e.Offset))
			writeU32(&buf, uint32(e.Span.Start))
			writeU32(&buf, uint32(e.Span.End))
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a .atb container.
func UnmarshalBinary(data []byte) (*Bytecode, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("bytecode: truncated header")
	}
	if magic != atbMagic {
		return nil, fmt.Errorf("bytecode: bad magic %q", magic[:])
	}
	version, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if version != atbVersion {
		return nil, fmt.Errorf("bytecode: unsupported version %d", version)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("bytecode: truncated header")
	}

	bc := New()

	constCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < constCount; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("bytecode: constant %d: %w", i, err)
		}
		bc.Constants = append(bc.Constants, c)
	}

	instrLen, err := readLen(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: truncated instructions: %w", err)
	}
	bc.Instructions = make([]byte, instrLen)
	if _, err := io.ReadFull(r, bc.Instructions); err != nil {
		return nil, fmt.Errorf("bytecode: truncated instructions")
	}

	if flags&flagDebugInfo != 0 {
		entryCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < entryCount; i++ {
			offset, err := readU32(r)
			if err != nil {
				return nil, err
			}
			start, err := readU32(r)
			if err != nil {
				return nil, err
			}
			end, err := readU32(r)
			if err != nil {
				return nil, err
			}
			bc.DebugInfo = append(bc.DebugInfo, SpanEntry{
				Offset: int(offset),
				Span:   token.NewSpan(int(start), int(end)),
			})
		}
	}
	return bc, nil
}

func writeConstant(buf *bytes.Buffer, c object.Value) error {
	switch c := c.(type) {
	case *object.Number:
		buf.WriteByte(tagNumber)
		writeU64(buf, math.Float64bits(c.Value()))
	case *object.String:
		buf.WriteByte(tagString)
		writeU32(buf, uint32(len(c.Value())))
		buf.WriteString(c.Value())
	case *object.Bool:
		buf.WriteByte(tagBool)
		if c.Value() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case *object.NullType:
		buf.WriteByte(tagNull)
	case *object.Function:
		buf.WriteByte(tagFunction)
		writeU32(buf, uint32(len(c.Name)))
		buf.WriteString(c.Name)
		writeU16(buf, uint16(c.Arity))
		writeU32(buf, uint32(c.BytecodeOffset))
		writeU16(buf, uint16(c.LocalCount))
	default:
		return fmt.Errorf("bytecode: %s constants are not serializable", c.Type())
	}
	return nil
}

func readConstant(r *bytes.Reader) (object.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("truncated constant")
	}
	switch tag {
	case tagNumber:
		bits, err := readU64(r)
		if err != nil {
			return nil, err
		}
		return object.NewNumber(math.Float64frombits(bits)), nil
	case tagString:
		length, err := readLen(r)
		if err != nil {
			return nil, fmt.Errorf("truncated string constant: %w", err)
		}
		s := make([]byte, length)
		if _, err := io.ReadFull(r, s); err != nil {
			return nil, fmt.Errorf("truncated string constant")
		}
		return object.NewString(string(s)), nil
	case tagBool:
		v, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("truncated bool constant")
		}
		return object.NewBool(v != 0), nil
	case tagNull:
		return object.Null, nil
	case tagFunction:
		nameLen, err := readLen(r)
		if err != nil {
			return nil, fmt.Errorf("truncated function name: %w", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("truncated function name")
		}
		arity, err := readU16(r)
		if err != nil {
			return nil, err
		}
		offset, err := readU32(r)
		if err != nil {
			return nil, err
		}
		localCount, err := readU16(r)
		if err != nil {
			return nil, err
		}
		return &object.Function{
			Name:           string(name),
			Arity:          int(arity),
			BytecodeOffset: int(offset),
			LocalCount:     int(localCount),
		}, nil
	default:
		return nil, fmt.Errorf("unknown constant tag %d", tag)
	}
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// readLen reads a u32 length prefix and rejects values larger than the
// bytes remaining in the reader, so a corrupt length cannot drive a
// multi-gigabyte allocation before the following read fails.
func readLen(r *bytes.Reader) (int, error) {
	v, err := readU32(r)
	if err != nil {
		return 0, err
	}
	if int64(v) > int64(r.Len()) {
		return 0, fmt.Errorf("length %d exceeds %d remaining bytes", v, r.Len())
	}
	return int(v), nil
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("bytecode: truncated u16")
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("bytecode: truncated u32")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("bytecode: truncated u64")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
