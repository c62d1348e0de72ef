package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
)

// maxChain bounds how many wrapped layers a dump records.
const maxChain = 8

// DBFault is the driver-level detail of a failed statement.
type DBFault struct {
	Code       string
	Constraint string
	Table      string
	Detail     string
	Message    string
}

// ErrorDump flattens an error into log fields.
type ErrorDump struct {
	Message string
	Code    Code
	Chain   []string
	// Causes lists each member of a multierr aggregate, e.g. a failed
	// notification fan-out.
	Causes []string
	DB     *DBFault
	// SQLiteCode is the extended sqlite result code.
	SQLiteCode string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil && len(d.Chain) < maxChain; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T", e))
	}
	if causes := multierr.Errors(err); len(causes) > 1 {
		for _, c := range causes {
			d.Causes = append(d.Causes, c.Error())
		}
	}

	d.DB = dbFault(err)
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		d.SQLiteCode = liteErr.ExtendedCode.Error()
	}
	return d
}

func dbFault(err error) *DBFault {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBFault{Code: pgxErr.Code, Constraint: pgxErr.ConstraintName, Table: pgxErr.TableName, Detail: pgxErr.Detail, Message: pgxErr.Message}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBFault{Code: string(pqErr.Code), Constraint: pqErr.Constraint, Table: pqErr.Table, Detail: pqErr.Detail, Message: pqErr.Message}
	}
	return nil
}

// Fields renders d for logger.WithFields, omitting empty parts.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 0 {
		fields["error_chain"] = d.Chain
	}
	if len(d.Causes) > 0 {
		fields["error_causes"] = d.Causes
	}
	if d.DB != nil {
		fields["pg_code"] = d.DB.Code
		fields["pg_constraint"] = d.DB.Constraint
		fields["pg_table"] = d.DB.Table
		fields["pg_detail"] = d.DB.Detail
		fields["pg_message"] = d.DB.Message
	}
	if d.SQLiteCode != "" {
		fields["sqlite_code"] = d.SQLiteCode
	}
	return fields
}
