package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// CurrentSchemaVersion is the leading byte of every encoded session.
const CurrentSchemaVersion uint8 = 1

var errFieldTooLong = errors.New("session field too long")

// Encode serializes a session into the compact storage format:
//
//	version | userID | email | role | ip | userAgent | createdAt(ms) | lastActivity(ms)
//
// Strings are prefixed with a big-endian uint16 length. The session ID is not stored;
// it is part of the key.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(s.UserID) + len(s.Email) + len(s.Role) + len(s.IP) + len(s.UserAgent))

	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []string{s.UserID, s.Email, s.Role, s.IP, s.UserAgent} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActivity.UnixMilli()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by [Encode]. SessionID is left empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}
	fields := []*string{&s.UserID, &s.Email, &s.Role, &s.IP, &s.UserAgent}
	for _, field := range fields {
		v, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*field = v
	}

	var createdAt, lastActivity int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &lastActivity); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session blob")
	}

	s.CreatedAt = time.UnixMilli(createdAt)
	s.LastActivity = time.UnixMilli(lastActivity)
	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errFieldTooLong
	}
	var size [2]byte
	binary.BigEndian.PutUint16(size[:], uint16(len(v)))
	buf.Write(size[:])
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var size uint16
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return "", err
	}
	if int(size) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
