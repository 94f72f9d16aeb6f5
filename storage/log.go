// Package storage implements the ledger's crash-safe on-disk persistence:
// an append-only transaction log and an atomically-replaced state snapshot.
package storage

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/egpivo/metering-chain-sub000/core"
)

// SetLogger installs the logger storage operations report through.
func SetLogger(l *log.Logger) { logger = l }

var logger = newDiscardLogger()

func newDiscardLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// TxLog is the append-only, length-prefixed transaction log: every record
// is a little-endian u64 byte length followed by that many bytes of
// canonical RLP-encoded core.SignedTx. Every append is fsynced before it
// returns, so an acknowledged append always survives a crash.
type TxLog struct {
	path string
}

// NewTxLog returns a TxLog backed by path. The file is created lazily on
// first append.
func NewTxLog(path string) *TxLog {
	return &TxLog{path: path}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to create data directory", err)
	}
	return nil
}

// Append writes tx's canonical encoding to the end of the log, fsyncing
// before it returns.
func (l *TxLog) Append(tx *core.SignedTx) error {
	if err := ensureDir(l.path); err != nil {
		return err
	}
	txBytes, err := tx.EncodeCanonical()
	if err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to encode transaction", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to open tx log for append", err)
	}
	defer f.Close()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(txBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to write tx length", err)
	}
	if _, err := f.Write(txBytes); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to write tx data", err)
	}
	if err := f.Sync(); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to fsync tx log", err)
	}

	logger.WithField("signer", tx.Signer.Short()).Debug("storage: appended transaction")
	return nil
}

// LoadFrom streams every record at position fromTxID onward (0-indexed) and
// decodes it as a SignedTx. A clean EOF at a record boundary ends the scan;
// an EOF in the middle of a length prefix or payload indicates a
// crash-truncated tail and is reported as a corrupt-log error rather than
// silently dropped, so callers can decide whether to repair the log file.
func (l *TxLog) LoadFrom(fromTxID uint64) ([]*core.SignedTx, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.CodeStorageIO, "failed to open tx log", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var txs []*core.SignedTx
	var currentID uint64

	for {
		var lenBuf [8]byte
		_, err := io.ReadFull(reader, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.CodeStorageCorrupt, "tx log truncated mid length-prefix", err)
		}
		length := binary.LittleEndian.Uint64(lenBuf[:])
		txBuf := make([]byte, length)
		if _, err := io.ReadFull(reader, txBuf); err != nil {
			return nil, core.WrapError(core.CodeStorageCorrupt, "tx log truncated mid record", err)
		}

		if currentID >= fromTxID {
			tx, err := core.DecodeSignedTx(txBuf)
			if err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}
		currentID++
	}

	return txs, nil
}
