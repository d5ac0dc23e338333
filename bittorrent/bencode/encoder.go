package bencode

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// An Encoder writes bencoded objects to an output stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the bencoding of v to the stream.
func (enc *Encoder) Encode(v interface{}) error {
	return marshal(enc.w, v)
}

// Marshal returns the bencoding of v.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := marshal(&buf, v)
	return buf.Bytes(), err
}

func marshal(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case []byte:
		return marshalBytes(w, v)

	case string:
		return marshalBytes(w, []byte(v))

	case int:
		return marshalInt(w, int64(v))

	case int32:
		return marshalInt(w, int64(v))

	case int64:
		return marshalInt(w, v)

	case uint:
		return marshalUint(w, uint64(v))

	case uint16:
		return marshalUint(w, uint64(v))

	case uint32:
		return marshalUint(w, uint64(v))

	case uint64:
		return marshalUint(w, v)

	case Dict:
		return marshalDict(w, v)

	case map[string]interface{}:
		return marshalDict(w, v)

	case List:
		return marshalList(w, v)

	case []interface{}:
		return marshalList(w, v)

	case []Dict:
		l := make(List, len(v))
		for i, d := range v {
			l[i] = d
		}
		return marshalList(w, l)

	default:
		return fmt.Errorf("bencode: unsupported type: %T", v)
	}
}

func marshalInt(w io.Writer, v int64) error {
	if _, err := io.WriteString(w, "i"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, strconv.FormatInt(v, 10)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "e")
	return err
}

func marshalUint(w io.Writer, v uint64) error {
	if _, err := io.WriteString(w, "i"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, strconv.FormatUint(v, 10)); err != nil {
		return err
	}
	_, err := io.WriteString(w, "e")
	return err
}

func marshalBytes(w io.Writer, v []byte) error {
	if _, err := io.WriteString(w, strconv.Itoa(len(v))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, ":"); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func marshalList(w io.Writer, v List) error {
	if _, err := io.WriteString(w, "l"); err != nil {
		return err
	}

	for _, val := range v {
		if err := marshal(w, val); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "e")
	return err
}

func marshalDict(w io.Writer, v Dict) error {
	if _, err := io.WriteString(w, "d"); err != nil {
		return err
	}

	// Dictionary keys must appear in sorted order.
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := marshalBytes(w, []byte(key)); err != nil {
			return err
		}
		if err := marshal(w, v[key]); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "e")
	return err
}
