package wal

import (
	"go.uber.org/atomic"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// ManagerOpts tunes a LogManager.
type ManagerOpts struct {
	// FsyncOnFlush makes FlushToDisk fsync the active segment. Without it FlushToDisk
	// only hands buffered records to the OS.
	FsyncOnFlush bool
}

// LogManager encodes transaction log records onto a Log. It is the txn.LogManager the
// engine hands to commit and abort.
type LogManager struct {
	log  *Log
	opts ManagerOpts
	lg   logger.Logger

	appended atomic.Uint64
	flushes  atomic.Uint64
}

var _ txn.LogManager = (*LogManager)(nil)

func NewLogManager(log *Log, opts ManagerOpts, lg logger.Logger) *LogManager {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &LogManager{log: log, opts: opts, lg: lg}
}

// Append encodes rec and buffers it on the log.
func (m *LogManager) Append(rec txn.LogRecord) error {
	rt, payload, err := EncodeLogRecord(rec)
	if err != nil {
		return err
	}
	segID, offset, err := m.log.Append(rt, payload)
	if err != nil {
		return err
	}
	m.appended.Inc()
	m.lg.Debug("log append", "type", rt.String(), "txn_id", rec.TxnID, "seg", segID, "at", offset)
	return nil
}

// FlushToDisk flushes the log and, if configured, fsyncs it.
func (m *LogManager) FlushToDisk() error {
	var err error
	if m.opts.FsyncOnFlush {
		err = m.log.FSync()
	} else {
		err = m.log.Flush()
	}
	if err != nil {
		return err
	}
	m.flushes.Inc()
	return nil
}

// Stats returns how many records were appended and how many flushes completed.
func (m *LogManager) Stats() (appended, flushes uint64) {
	return m.appended.Load(), m.flushes.Load()
}

func (m *LogManager) Close() error {
	return m.log.Close()
}

// EncodeLogRecord maps a transaction log record onto a framed record type and payload.
func EncodeLogRecord(rec txn.LogRecord) (record.RecordType, []byte, error) {
	var rt record.RecordType
	switch rec.Kind {
	case txn.LogBegin:
		rt = record.RecordTypeBegin
	case txn.LogCommit:
		rt = record.RecordTypeCommit
	case txn.LogAbort:
		rt = record.RecordTypeAbort
	case txn.LogInsert:
		rt = record.RecordTypeInsert
	case txn.LogDelete:
		rt = record.RecordTypeDelete
	case txn.LogUpdate:
		rt = record.RecordTypeUpdate
	default:
		return 0, nil, wrapLogErr("encode", ErrEncode, "", 0, record.ErrInvalidType)
	}

	if !rt.IsData() {
		return rt, record.EncodeTxnPayload(rec.TxnID), nil
	}
	payload, err := record.EncodeDataPayload(rt, &record.DataPayload{
		TxnID:  rec.TxnID,
		Table:  rec.Table,
		RID:    rec.RID.Encode(),
		Before: rec.Before,
		After:  rec.After,
	})
	if err != nil {
		return 0, nil, wrapLogErr("encode", ErrEncode, "", 0, err)
	}
	return rt, payload, nil
}

// DecodeLogRecord is the inverse of EncodeLogRecord. Images are copied out of fr.
func DecodeLogRecord(fr record.FramedRecord) (txn.LogRecord, error) {
	rt := fr.Record.Type
	kinds := map[record.RecordType]txn.LogKind{
		record.RecordTypeBegin:  txn.LogBegin,
		record.RecordTypeCommit: txn.LogCommit,
		record.RecordTypeAbort:  txn.LogAbort,
		record.RecordTypeInsert: txn.LogInsert,
		record.RecordTypeDelete: txn.LogDelete,
		record.RecordTypeUpdate: txn.LogUpdate,
	}
	kind, ok := kinds[rt]
	if !ok {
		return txn.LogRecord{}, wrapLogErr("decode", ErrDecode, "", 0, record.ErrInvalidType)
	}

	if !rt.IsData() {
		p, err := record.DecodeTxnPayload(fr.Record.Payload)
		if err != nil {
			return txn.LogRecord{}, wrapLogErr("decode", ErrDecode, "", 0, err)
		}
		return txn.LogRecord{Kind: kind, TxnID: p.TxnID}, nil
	}

	p, err := record.DecodeDataPayload(rt, fr.Record.Payload)
	if err != nil {
		return txn.LogRecord{}, wrapLogErr("decode", ErrDecode, "", 0, err)
	}
	rid, err := storage.DecodeRecordId(p.RID)
	if err != nil {
		return txn.LogRecord{}, wrapLogErr("decode", ErrDecode, "", 0, err)
	}
	return txn.LogRecord{
		Kind:   kind,
		TxnID:  p.TxnID,
		Table:  p.Table,
		RID:    rid,
		Before: storage.RawRecord(p.Before).Clone(),
		After:  storage.RawRecord(p.After).Clone(),
	}, nil
}

// ReadLogRecords decodes every record in the log, in order.
func ReadLogRecords(p SegmentProvider, fn func(pos Position, rec txn.LogRecord) error) error {
	return Scan(p, func(pos Position, fr record.FramedRecord) error {
		rec, err := DecodeLogRecord(fr)
		if err != nil {
			return err
		}
		return fn(pos, rec)
	})
}
