package scenario

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/chimera-eth/chimera/logging"
	"github.com/chimera-eth/chimera/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"golang.org/x/net/context"
)

// Bucket names of the journal database.
var (
	// journalRunsBucket holds one RunSummary per run, keyed by run id.
	journalRunsBucket = []byte("runs")

	// journalRecordsBucket holds the per-run record stream, keyed by run id and sequence number.
	journalRecordsBucket = []byte("records")
)

// RunSummary is the journal's durable header for one scenario run.
type RunSummary struct {
	// RunID identifies the run.
	RunID uuid.UUID `cbor:"runId"`

	// Scenario is the scenario's name.
	Scenario string `cbor:"scenario"`

	// ScenarioHash is the digest of the scenario content the run executed, for reproducibility.
	ScenarioHash common.Hash `cbor:"scenarioHash"`

	// StartTime is the unix timestamp the run began at.
	StartTime int64 `cbor:"startTime"`

	// Status is the run's terminal lifecycle state, or "running" if the run never finished.
	Status string `cbor:"status"`

	// Passed and Failed count the run's step expectation outcomes.
	Passed int `cbor:"passed"`
	Failed int `cbor:"failed"`
}

// Record is one journaled event of a run: an account audit-trail event or a step outcome.
type Record struct {
	// Seq orders the record within its run.
	Seq uint64 `cbor:"seq"`

	// Time is the unix timestamp the record was written at.
	Time int64 `cbor:"time"`

	// Kind names what the record describes, e.g. "executionInstalled" or "step".
	Kind string `cbor:"kind"`

	// Payload is the JSON-serialized record body.
	Payload []byte `cbor:"payload"`
}

// Journal persists the audit trail of scenario runs to a bolt database, so completed runs can be listed and
// inspected after the process exits.
type Journal struct {
	// db is the underlying bolt database.
	db *bbolt.DB

	// logger is the journal's sub-logger.
	logger *logging.Logger
}

// OpenJournal opens (creating if needed) a journal database at the provided path.
func OpenJournal(path string) (*Journal, error) {
	// Ensure the parent directory exists before bolt creates the file.
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.MakeDirectory(dir); err != nil {
			return nil, err
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Create the buckets up front so later writes don't need to.
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, bucketErr := tx.CreateBucketIfNotExists(journalRunsBucket); bucketErr != nil {
			return bucketErr
		}
		_, bucketErr := tx.CreateBucketIfNotExists(journalRecordsBucket)
		return bucketErr
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Journal{
		db:     db,
		logger: logging.GlobalLogger.NewSubLogger("module", "journal"),
	}, nil
}

// CloseOnCancel closes the journal when the provided context is cancelled, so an interrupted run still
// flushes the database cleanly.
func (j *Journal) CloseOnCancel(ctx context.Context) {
	go func() {
		<-ctx.Done()
		if err := j.Close(); err != nil {
			j.logger.Error("Failed to close the journal database", err)
		}
	}()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return errors.WithStack(j.db.Close())
}

// BeginRun writes the header of a new run in the "running" state.
func (j *Journal) BeginRun(runID uuid.UUID, scenarioName string, scenarioHash common.Hash) error {
	summary := RunSummary{
		RunID:        runID,
		Scenario:     scenarioName,
		ScenarioHash: scenarioHash,
		StartTime:    time.Now().Unix(),
		Status:       "running",
	}
	return j.putSummary(&summary)
}

// FinishRun updates a run's header with its terminal status and step counts.
func (j *Journal) FinishRun(runID uuid.UUID, status string, passed int, failed int) error {
	summary, err := j.Run(runID)
	if err != nil {
		return err
	}
	summary.Status = status
	summary.Passed = passed
	summary.Failed = failed
	return j.putSummary(summary)
}

// putSummary cbor-encodes and stores a run summary.
func (j *Journal) putSummary(summary *RunSummary) error {
	encoded, err := cbor.Marshal(summary, cbor.EncOptions{})
	if err != nil {
		return errors.WithStack(err)
	}
	err = j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(journalRunsBucket).Put(summary.RunID[:], encoded)
	})
	return errors.WithStack(err)
}

// Record appends one record to a run's stream. The payload is JSON-serialized into the record envelope.
func (j *Journal) Record(runID uuid.UUID, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.WithStack(err)
	}

	err = j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(journalRecordsBucket)
		seq, seqErr := bucket.NextSequence()
		if seqErr != nil {
			return seqErr
		}

		record := Record{
			Seq:     seq,
			Time:    time.Now().Unix(),
			Kind:    kind,
			Payload: body,
		}
		encoded, encodeErr := cbor.Marshal(record, cbor.EncOptions{})
		if encodeErr != nil {
			return encodeErr
		}
		return bucket.Put(recordKey(runID, seq), encoded)
	})
	return errors.WithStack(err)
}

// recordKey builds a record's bucket key: the run id followed by the big-endian sequence number, so a
// cursor scan over one run's prefix yields records in order.
func recordKey(runID uuid.UUID, seq uint64) []byte {
	key := make([]byte, len(runID)+8)
	copy(key, runID[:])
	binary.BigEndian.PutUint64(key[len(runID):], seq)
	return key
}

// Run fetches one run's summary by id.
func (j *Journal) Run(runID uuid.UUID) (*RunSummary, error) {
	summary := &RunSummary{}
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(journalRunsBucket).Get(runID[:])
		if data == nil {
			return errors.Errorf("journal has no run %s", runID)
		}
		return cbor.Unmarshal(data, summary)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return summary, nil
}

// Runs lists the summaries of every journaled run.
func (j *Journal) Runs() ([]*RunSummary, error) {
	var summaries []*RunSummary
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(journalRunsBucket).ForEach(func(key []byte, value []byte) error {
			summary := &RunSummary{}
			if decodeErr := cbor.Unmarshal(value, summary); decodeErr != nil {
				return decodeErr
			}
			summaries = append(summaries, summary)
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return summaries, nil
}

// Records lists one run's journaled records in sequence order.
func (j *Journal) Records(runID uuid.UUID) ([]*Record, error) {
	var records []*Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(journalRecordsBucket).Cursor()
		prefix := runID[:]
		for key, value := cursor.Seek(prefix); key != nil && len(key) >= len(prefix) && string(key[:len(prefix)]) == string(prefix); key, value = cursor.Next() {
			record := &Record{}
			if decodeErr := cbor.Unmarshal(value, record); decodeErr != nil {
				return decodeErr
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return records, nil
}
