package featuremill

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
)

// Feature definitions are exported so a separately-trained model's feature
// set can be reproduced exactly against new entities: import the definitions
// and hand them to NewCalculator instead of re-running Synthesize.

// ExportDefinitions writes a feature-definition list as indented JSON.
func ExportDefinitions(w io.Writer, defs []FeatureDefinition) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(defs)
}

// ImportDefinitions reads a feature-definition list written by
// ExportDefinitions and validates its basic shape.
func ImportDefinitions(r io.Reader) ([]FeatureDefinition, error) {
	var defs []FeatureDefinition
	if err := json.NewDecoder(r).Decode(&defs); err != nil {
		return nil, fmt.Errorf("decoding definitions: %w", err)
	}
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Name == "" || d.Primitive == "" || d.Table == "" {
			return nil, fmt.Errorf("definition %q: name, primitive and table are required", d.Name)
		}
		if d.Kind != KindTransform && d.Kind != KindAggregation {
			return nil, fmt.Errorf("definition %q: unknown kind %q", d.Name, d.Kind)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate definition name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return defs, nil
}

// Snapshot bundles a feature matrix with the definition list that produced
// it, for archival or transfer to a serving environment.
type Snapshot struct {
	Matrix      *FeatureMatrix      `json:"matrix"`
	Definitions []FeatureDefinition `json:"definitions"`
}

// Snapshot wire format: a 4-byte magic, a flags byte, an optional key
// derivation salt, then the snappy-compressed JSON payload (encrypted when
// the flag is set). Numeric cells round-trip as float64 and timestamps as
// RFC 3339 strings, JSON's value model.
var snapshotMagic = []byte("FML1")

const snapshotFlagEncrypted = 0x01

// WriteSnapshot writes a snappy-compressed snapshot. With a non-nil
// Encryptor the payload is AES-256-GCM encrypted and the key-derivation salt
// is stored in the header so ReadSnapshot can derive the same key from a
// password.
func WriteSnapshot(w io.Writer, snap *Snapshot, enc *Encryptor) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	payload := snappy.Encode(nil, raw)

	var flags byte
	if enc != nil {
		flags |= snapshotFlagEncrypted
		payload, err = enc.Encrypt(payload)
		if err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
	}
	if _, err := w.Write(snapshotMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}
	if enc != nil {
		if _, err := w.Write(enc.Salt()); err != nil {
			return err
		}
	}
	_, err = w.Write(payload)
	return err
}

// ReadSnapshot reads a snapshot written by WriteSnapshot. The password is
// required for encrypted snapshots and ignored otherwise.
func ReadSnapshot(r io.Reader, password string) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < len(snapshotMagic)+1 || !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	flags := data[len(snapshotMagic)]
	payload := data[len(snapshotMagic)+1:]

	if flags&snapshotFlagEncrypted != 0 {
		if len(payload) < EncryptionSaltSize {
			return nil, fmt.Errorf("%w: truncated salt", ErrInvalidSnapshot)
		}
		if password == "" {
			return nil, errors.New("snapshot is encrypted but no password was provided")
		}
		salt := payload[:EncryptionSaltSize]
		enc, err := NewEncryptorWithSalt(password, salt)
		if err != nil {
			return nil, err
		}
		payload, err = enc.Decrypt(payload[EncryptionSaltSize:])
		if err != nil {
			return nil, fmt.Errorf("decrypting snapshot: %w", err)
		}
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return &snap, nil
}

// validateExportPath validates that an output path is safe to write to.
// It prevents writes to sensitive system directories and resolves the path
// to an absolute one.
func validateExportPath(outputPath string) (string, error) {
	if outputPath == "" {
		return "", errors.New("output path required")
	}
	cleanPath := filepath.Clean(outputPath)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	sensitivePatterns := []string{
		"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin",
		"/boot", "/dev", "/proc", "/sys", "/root",
	}
	for _, pattern := range sensitivePatterns {
		if strings.HasPrefix(absPath, pattern+"/") || absPath == pattern {
			return "", fmt.Errorf("cannot write to sensitive directory: %s", pattern)
		}
	}
	return absPath, nil
}

// WriteCSVFile writes the matrix as CSV to the given path.
func (m *FeatureMatrix) WriteCSVFile(path string) error {
	absPath, err := validateExportPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(absPath)
	if err != nil {
		return err
	}
	if err := m.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteSnapshotFile writes a snapshot to the given path.
func WriteSnapshotFile(path string, snap *Snapshot, enc *Encryptor) error {
	absPath, err := validateExportPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(absPath)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, snap, enc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSnapshotFile reads a snapshot from the given path.
func ReadSnapshotFile(path, password string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f, password)
}
