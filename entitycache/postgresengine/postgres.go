// Package postgresengine provides a PostgreSQL-backed document store for the
// entity cache: loosely-typed JSONB documents addressed by entity type and id,
// with filtered, searched, sorted, and paginated page queries.
package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/schooldash/entity-cache-go/entitycache"
	"github.com/schooldash/entity-cache-go/entitycache/postgresengine/internal/adapters"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrEmptyDocumentsTableName = errors.New("documents table name must not be empty")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingDocumentsFailed = errors.New("querying documents failed")
var ErrScanningDBRowFailed = errors.New("scanning database row failed")
var ErrDecodingDocumentFailed = errors.New("decoding document payload failed")
var ErrEncodingDocumentFailed = errors.New("encoding document payload failed")
var ErrExecutingWriteFailed = errors.New("executing document write failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
var ErrDocumentNotFound = errors.New("document not found")

const (
	defaultDocumentsTableName = "documents"

	logMsgBuildQueryFailed  = "failed to build query"
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgScanRowFailed     = "failed to scan database row"
	logMsgDecodeDocFailed   = "failed to decode document payload"
	logMsgDBExecFailed      = "database execution failed during document write"
	logMsgRowsAffectedError = "failed to get rows affected count"
	logMsgPageFetched       = "document page fetched"
	logMsgDocumentWritten   = "document written"
	logMsgSQLExecuted       = "executed sql for: "
	logMsgOperation         = "documentstore operation: "

	logAttrError       = "error"
	logAttrQuery       = "query"
	logAttrEntityType  = "entity_type"
	logAttrDocumentID  = "document_id"
	logAttrRecordCount = "record_count"
	logAttrDurationMS  = "duration_ms"

	logActionFetchPage = "fetch page"
	logActionCount     = "count"
	logActionFetchByID = "fetch by id"
	logActionInsert    = "insert"
	logActionUpdate    = "update"
	logActionDelete    = "delete"

	colID         = "id"
	colEntityType = "entity_type"
	colDoc        = "doc"
	colCreatedAt  = "created_at"
	colUpdatedAt  = "updated_at"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
	exprDocField    = "? ->> ?"
	exprContainment = "? @> ?::jsonb"
	exprNow         = "now()"
	likeWildcard    = "%"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

// DocumentStore is the PostgreSQL persistence engine behind the entity cache.
// Each row holds one entity as a JSONB document alongside its id, entity type,
// and system timestamps. It implements entitycache.FetchPrimitive and the
// server-side write operations the CRUD layer delegates to.
type DocumentStore struct {
	db               adapters.DBAdapter
	docTableName     string
	logger           entitycache.Logger
	contextualLogger entitycache.ContextualLogger
}

var _ entitycache.FetchPrimitive = DocumentStore{}

// Option defines a functional option for configuring DocumentStore.
type Option func(*DocumentStore) error

// WithTableName sets the documents table name for the DocumentStore.
func WithTableName(tableName string) Option {
	return func(ds *DocumentStore) error {
		if tableName == "" {
			return ErrEmptyDocumentsTableName
		}

		ds.docTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the DocumentStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Record counts and durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger entitycache.Logger) Option {
	return func(ds *DocumentStore) error {
		ds.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the DocumentStore.
// The contextual logger receives the same messages with context information,
// enabling automatic trace/span correlation when tracing is active.
func WithContextualLogger(logger entitycache.ContextualLogger) Option {
	return func(ds *DocumentStore) error {
		ds.contextualLogger = logger
		return nil
	}
}

type documentRow struct {
	id        string
	doc       []byte
	createdAt time.Time
	updatedAt time.Time
}

// NewDocumentStoreFromPGXPool creates a new DocumentStore using a pgx pool with optional configuration.
func NewDocumentStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (DocumentStore, error) {
	if db == nil {
		return DocumentStore{}, ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewPGXAdapter(db), options...)
}

// NewDocumentStoreFromPGXPoolAndReplica creates a new DocumentStore that executes
// page and count queries on the replica pool and writes on the primary pool.
func NewDocumentStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (DocumentStore, error) {
	if db == nil || replica == nil {
		return DocumentStore{}, ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewDocumentStoreFromSQLDB creates a new DocumentStore using a sql.DB with optional configuration.
func NewDocumentStoreFromSQLDB(db *sql.DB, options ...Option) (DocumentStore, error) {
	if db == nil {
		return DocumentStore{}, ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewSQLAdapter(db), options...)
}

// NewDocumentStoreFromSQLX creates a new DocumentStore using a sqlx.DB with optional configuration.
func NewDocumentStoreFromSQLX(db *sqlx.DB, options ...Option) (DocumentStore, error) {
	if db == nil {
		return DocumentStore{}, ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewSQLXAdapter(db), options...)
}

func newDocumentStore(db adapters.DBAdapter, options ...Option) (DocumentStore, error) {
	ds := DocumentStore{
		db:           db,
		docTableName: defaultDocumentsTableName,
	}

	for _, option := range options {
		if err := option(&ds); err != nil {
			return DocumentStore{}, err
		}
	}

	return ds, nil
}

// FetchPage retrieves one page of documents matching the sanitized query and
// returns them as loosely-typed maps, with the document id and the system
// timestamps merged into each map under their canonical field names.
func (ds DocumentStore) FetchPage(ctx context.Context, query entitycache.PageQuery) ([]map[string]any, error) {
	sqlQuery, buildErr := ds.buildPageQuery(query)
	if buildErr != nil {
		ds.logError(ctx, logMsgBuildQueryFailed, logAttrError, buildErr.Error())
		return nil, buildErr
	}

	rows, err := ds.executeQuery(ctx, sqlQuery, logActionFetchPage)
	if err != nil {
		return nil, err
	}
	defer ds.closeRows(ctx, rows)

	records := make([]map[string]any, 0)
	row := documentRow{}

	for rows.Next() {
		if scanErr := rows.Scan(&row.id, &row.doc, &row.createdAt, &row.updatedAt); scanErr != nil {
			ds.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}

		record, decodeErr := ds.decodeRow(row)
		if decodeErr != nil {
			ds.logError(ctx, logMsgDecodeDocFailed, logAttrError, decodeErr.Error(), logAttrDocumentID, row.id)
			return nil, decodeErr
		}

		records = append(records, record)
	}

	ds.logOperation(ctx, logMsgPageFetched,
		logAttrEntityType, query.EntityType,
		logAttrRecordCount, len(records))

	return records, nil
}

// CountTotal returns the number of documents matching the query's filters and
// search, ignoring skip and limit.
func (ds DocumentStore) CountTotal(ctx context.Context, query entitycache.PageQuery) (int, error) {
	countStmt := goqu.Dialect(dialectPostgres).
		From(ds.docTableName).
		Select(goqu.COUNT(goqu.Star()))

	countStmt = ds.addWhereClause(query, countStmt)

	sqlQuery, _, toSQLErr := countStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return 0, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := ds.executeQuery(ctx, sqlQuery, logActionCount)
	if err != nil {
		return 0, err
	}
	defer ds.closeRows(ctx, rows)

	total := 0
	if rows.Next() {
		if scanErr := rows.Scan(&total); scanErr != nil {
			ds.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return 0, errors.Join(ErrScanningDBRowFailed, scanErr)
		}
	}

	return total, nil
}

// FetchDocumentByID retrieves a single document by entity type and id.
// Returns ErrDocumentNotFound when no row matches.
func (ds DocumentStore) FetchDocumentByID(
	ctx context.Context,
	entityType entitycache.EntityTypeString,
	id entitycache.EntityIDString,
) (map[string]any, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(ds.docTableName).
		Select(colID, colDoc, colCreatedAt, colUpdatedAt).
		Where(goqu.Ex{colEntityType: entityType, colID: id}).
		Limit(1)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return nil, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rows, err := ds.executeQuery(ctx, sqlQuery, logActionFetchByID)
	if err != nil {
		return nil, err
	}
	defer ds.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, ErrDocumentNotFound
	}

	row := documentRow{}
	if scanErr := rows.Scan(&row.id, &row.doc, &row.createdAt, &row.updatedAt); scanErr != nil {
		ds.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
		return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	return ds.decodeRow(row)
}

// InsertDocument stores a new document. The payload should already be stripped
// of system fields; id and timestamps are owned by the store.
func (ds DocumentStore) InsertDocument(
	ctx context.Context,
	entityType entitycache.EntityTypeString,
	id entitycache.EntityIDString,
	doc entitycache.Record,
) error {

	encoded, encodeErr := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(map[string]any(doc))
	if encodeErr != nil {
		return errors.Join(ErrEncodingDocumentFailed, encodeErr)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(ds.docTableName).
		Rows(goqu.Record{
			colID:         string(id),
			colEntityType: string(entityType),
			colDoc:        goqu.L(castJsonb, encoded),
			colCreatedAt:  goqu.L(exprNow),
			colUpdatedAt:  goqu.L(exprNow),
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	if _, err := ds.executeWrite(ctx, sqlQuery, logActionInsert); err != nil {
		return err
	}

	ds.logOperation(ctx, logMsgDocumentWritten, logAttrEntityType, entityType, logAttrDocumentID, id)

	return nil
}

// UpdateDocument replaces the document payload for the given id and bumps its
// updated_at timestamp. Returns ErrDocumentNotFound when no row matches.
func (ds DocumentStore) UpdateDocument(
	ctx context.Context,
	entityType entitycache.EntityTypeString,
	id entitycache.EntityIDString,
	doc entitycache.Record,
) error {

	encoded, encodeErr := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(map[string]any(doc))
	if encodeErr != nil {
		return errors.Join(ErrEncodingDocumentFailed, encodeErr)
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(ds.docTableName).
		Set(goqu.Record{
			colDoc:       goqu.L(castJsonb, encoded),
			colUpdatedAt: goqu.L(exprNow),
		}).
		Where(goqu.Ex{colEntityType: entityType, colID: id})

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, err := ds.executeWrite(ctx, sqlQuery, logActionUpdate)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrDocumentNotFound
	}

	ds.logOperation(ctx, logMsgDocumentWritten, logAttrEntityType, entityType, logAttrDocumentID, id)

	return nil
}

// DeleteDocument removes the document for the given id.
// Returns ErrDocumentNotFound when no row matches.
func (ds DocumentStore) DeleteDocument(
	ctx context.Context,
	entityType entitycache.EntityTypeString,
	id entitycache.EntityIDString,
) error {

	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(ds.docTableName).
		Where(goqu.Ex{colEntityType: entityType, colID: id})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		ds.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	rowsAffected, err := ds.executeWrite(ctx, sqlQuery, logActionDelete)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// buildPageQuery assembles the SELECT for one page: filters, search, allow-listed
// ordering, and skip/limit.
func (ds DocumentStore) buildPageQuery(query entitycache.PageQuery) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(ds.docTableName).
		Select(colID, colDoc, colCreatedAt, colUpdatedAt)

	selectStmt = ds.addWhereClause(query, selectStmt).
		Order(ds.orderExpression(query)).
		Offset(uint(query.Skip)).
		Limit(uint(query.Limit))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// addWhereClause applies entity type, JSONB containment filters, and the ILIKE
// search disjunction. The sort field never appears here; field names reaching
// this point have already passed the executor's allow-list.
func (ds DocumentStore) addWhereClause(query entitycache.PageQuery, selectStmt *goqu.SelectDataset) *goqu.SelectDataset {
	selectStmt = selectStmt.Where(goqu.Ex{colEntityType: query.EntityType})

	for key, value := range query.Filters {
		encoded, encodeErr := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(map[string]any{key: value})
		if encodeErr != nil {
			continue
		}

		selectStmt = selectStmt.Where(goqu.L(exprContainment, goqu.C(colDoc), encoded))
	}

	if query.Search != "" && len(query.SearchFields) > 0 {
		pattern := likeWildcard + query.Search + likeWildcard

		searchExpressions := make([]goqu.Expression, 0, len(query.SearchFields))
		for _, field := range query.SearchFields {
			searchExpressions = append(
				searchExpressions,
				goqu.L(exprDocField, goqu.C(colDoc), field).ILike(pattern),
			)
		}

		// search fields must always be filtered with OR ;-)
		selectStmt = selectStmt.Where(goqu.Or(searchExpressions...))
	}

	return selectStmt
}

// orderExpression maps the canonical timestamp fields to their real columns and
// every other sort field to a JSONB text extraction.
func (ds DocumentStore) orderExpression(query entitycache.PageQuery) exp.OrderedExpression {
	descending := query.SortOrder == entitycache.SortDesc

	switch query.SortField {
	case "createdAt":
		if descending {
			return goqu.C(colCreatedAt).Desc()
		}
		return goqu.C(colCreatedAt).Asc()

	case "updatedAt":
		if descending {
			return goqu.C(colUpdatedAt).Desc()
		}
		return goqu.C(colUpdatedAt).Asc()

	default:
		fieldExpr := goqu.L(exprDocField, goqu.C(colDoc), query.SortField)
		if descending {
			return fieldExpr.Desc()
		}
		return fieldExpr.Asc()
	}
}

// decodeRow unmarshals the JSONB payload and merges the row-level id and
// timestamps into the map under their canonical field names.
func (ds DocumentStore) decodeRow(row documentRow) (map[string]any, error) {
	record := make(map[string]any)

	if len(row.doc) > 0 {
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(row.doc, &record); err != nil {
			return nil, errors.Join(ErrDecodingDocumentFailed, err)
		}
	}

	record["_id"] = row.id
	record["createdAt"] = row.createdAt
	record["updatedAt"] = row.updatedAt

	return record, nil
}

// executeQuery executes the SQL query and logs it with timing information.
func (ds DocumentStore) executeQuery(ctx context.Context, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := ds.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	ds.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if queryErr != nil {
		ds.logError(ctx, logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingDocumentsFailed, queryErr)
	}

	return rows, nil
}

// executeWrite executes the SQL statement and returns the affected row count.
func (ds DocumentStore) executeWrite(ctx context.Context, sqlQuery string, action string) (rowsAffectedInt64, error) {
	start := time.Now()
	result, execErr := ds.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	ds.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if execErr != nil {
		ds.logError(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return 0, errors.Join(ErrExecutingWriteFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		ds.logError(ctx, logMsgRowsAffectedError, logAttrError, rowsAffectedErr.Error())
		return 0, errors.Join(ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (ds DocumentStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if ds.contextualLogger != nil {
			ds.contextualLogger.WarnContext(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
		if ds.logger != nil {
			ds.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (ds DocumentStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if ds.contextualLogger != nil {
		ds.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action,
			logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if ds.logger != nil {
		ds.logger.Debug(logMsgSQLExecuted+action,
			logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (ds DocumentStore) logOperation(ctx context.Context, action string, args ...any) {
	if ds.contextualLogger != nil {
		ds.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}

	if ds.logger != nil {
		ds.logger.Info(logMsgOperation+action, args...)
	}
}

func (ds DocumentStore) logError(ctx context.Context, msg string, args ...any) {
	if ds.contextualLogger != nil {
		ds.contextualLogger.ErrorContext(ctx, msg, args...)
	}

	if ds.logger != nil {
		ds.logger.Error(msg, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
