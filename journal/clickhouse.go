package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/tebeka/atexit"
)

// ClickHouseRecorder records rows into a ClickHouse server. It handles the
// row types of this package with type-specific batches, so recording stays
// allocation-free on the hot path.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	lifecycleBatch []LifecycleRow
	singletonBatch []SingletonRow
	runInfoBatch   []RunInfoRow

	tables     map[string]chTableType
	entryCount int
}

type chTableType int

const (
	chTableLifecycle chTableType = iota
	chTableSingleton
	chTableRunInfo
)

// ClickHouseOptions configures the connection to a ClickHouse server.
type ClickHouseOptions struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// BatchSize is the number of rows buffered before a flush. 0 selects
	// the default.
	BatchSize int
}

// NewClickHouseRecorder connects to a ClickHouse server and returns a
// recorder writing into the given database.
func NewClickHouseRecorder(opt ClickHouseOptions) *ClickHouseRecorder {
	batchSize := opt.BatchSize
	if batchSize == 0 {
		batchSize = 100000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opt.Host, opt.Port)},
		Auth: clickhouse.Auth{
			Database: opt.Database,
			Username: opt.Username,
			Password: opt.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	recorder := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]chTableType),
	}

	atexit.Register(func() {
		recorder.Flush()
	})

	return recorder
}

// CreateTable creates a table shaped like the sample entry. Only the row
// types of this package are supported.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var createSQL string
	var tType chTableType

	switch sampleEntry.(type) {
	case LifecycleRow:
		tType = chTableLifecycle
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Time Float64,
				Event String,
				ObjectID String,
				Object String,
				Scene String,
				Detail String
			) ENGINE = MergeTree()
			ORDER BY Time
		`, tableName)

	case SingletonRow:
		tType = chTableSingleton
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Time Float64,
				Event String,
				Type String,
				Object String,
				Policy String,
				AutoCreated Bool
			) ENGINE = MergeTree()
			ORDER BY (Type, Time)
		`, tableName)

	case RunInfoRow:
		tType = chTableRunInfo
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Property String,
				Value String
			) ENGINE = MergeTree()
			ORDER BY Property
		`, tableName)

	default:
		panic(fmt.Sprintf("unsupported table type: %T", sampleEntry))
	}

	err := r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = tType
}

// InsertData appends an entry to its table's batch.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	tType, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	switch tType {
	case chTableLifecycle:
		e, ok := entry.(LifecycleRow)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("invalid entry type for %s: %T",
				tableName, entry))
		}
		r.lifecycleBatch = append(r.lifecycleBatch, e)

	case chTableSingleton:
		e, ok := entry.(SingletonRow)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("invalid entry type for %s: %T",
				tableName, entry))
		}
		r.singletonBatch = append(r.singletonBatch, e)

	case chTableRunInfo:
		e, ok := entry.(RunInfoRow)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("invalid entry type for %s: %T",
				tableName, entry))
		}
		r.runInfoBatch = append(r.runInfoBatch, e)
	}

	r.entryCount++

	if r.entryCount >= r.batchSize {
		r.mu.Unlock()
		r.Flush()
		return
	}

	r.mu.Unlock()
}

// ListTables returns all table names.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

// Flush writes all batched rows to ClickHouse using bulk inserts.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, tType := range r.tables {
		switch tType {
		case chTableLifecycle:
			if len(r.lifecycleBatch) > 0 {
				r.flushLifecycle(ctx, tableName)
			}
		case chTableSingleton:
			if len(r.singletonBatch) > 0 {
				r.flushSingleton(ctx, tableName)
			}
		case chTableRunInfo:
			if len(r.runInfoBatch) > 0 {
				r.flushRunInfo(ctx, tableName)
			}
		}
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) flushLifecycle(
	ctx context.Context,
	tableName string,
) {
	batch := r.prepareBatch(ctx, tableName)

	for _, entry := range r.lifecycleBatch {
		err := batch.Append(
			entry.Time,
			entry.Event,
			entry.ObjectID,
			entry.Object,
			entry.Scene,
			entry.Detail,
		)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	r.sendBatch(batch)
	r.lifecycleBatch = r.lifecycleBatch[:0]
}

func (r *ClickHouseRecorder) flushSingleton(
	ctx context.Context,
	tableName string,
) {
	batch := r.prepareBatch(ctx, tableName)

	for _, entry := range r.singletonBatch {
		err := batch.Append(
			entry.Time,
			entry.Event,
			entry.Type,
			entry.Object,
			entry.Policy,
			entry.AutoCreated,
		)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	r.sendBatch(batch)
	r.singletonBatch = r.singletonBatch[:0]
}

func (r *ClickHouseRecorder) flushRunInfo(
	ctx context.Context,
	tableName string,
) {
	batch := r.prepareBatch(ctx, tableName)

	for _, entry := range r.runInfoBatch {
		err := batch.Append(entry.Property, entry.Value)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	r.sendBatch(batch)
	r.runInfoBatch = r.runInfoBatch[:0]
}

func (r *ClickHouseRecorder) prepareBatch(
	ctx context.Context,
	tableName string,
) driver.Batch {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s", tableName))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w",
			tableName, err))
	}

	return batch
}

func (r *ClickHouseRecorder) sendBatch(batch driver.Batch) {
	err := batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}
}

// Close flushes remaining rows and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.Flush()

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
