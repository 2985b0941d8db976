package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	db.DBTX
	db.TxBeginner
}

// PgStore implements Store on PostgreSQL.
type PgStore struct {
	pool Pool
}

// NewPgStore constructs a PgStore.
func NewPgStore(pool Pool) *PgStore {
	return &PgStore{pool: pool}
}

const accountColumns = `a.id, a.kind, a.email, a.name, COALESCE(a.phone_number, ''), a.password_hash, a.created_at, a.updated_at`

const insertAccountSQL = `INSERT INTO accounts (kind, email, name, phone_number, password_hash)
VALUES ($1, $2, $3, NULLIF($4, ''), $5)
RETURNING id, kind, email, name, COALESCE(phone_number, ''), password_hash, created_at, updated_at`

func (s *PgStore) CreateAdmin(ctx context.Context, email, name, passwordHash string) (Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx, insertAccountSQL, RoleAdmin, email, name, "", passwordHash))
	if err != nil {
		return Account{}, translateWriteError(err)
	}
	return acc, nil
}

func (s *PgStore) CreateSalesperson(ctx context.Context, in SalespersonInput, passwordHash string) (Salesperson, error) {
	var sp Salesperson
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		acc, err := scanAccount(tx.QueryRow(ctx, insertAccountSQL, RoleSalesperson, in.Email, in.Name, in.PhoneNumber, passwordHash))
		if err != nil {
			return translateWriteError(err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO salesperson_profiles (account_id, employee_id, pan, address) VALUES ($1, $2, $3, $4)`,
			acc.ID, in.EmployeeID, in.PAN, in.Address)
		if err != nil {
			return translateWriteError(err)
		}
		sp = Salesperson{Account: acc, EmployeeID: in.EmployeeID, PAN: in.PAN, Address: in.Address}
		return nil
	})
	return sp, err
}

func (s *PgStore) CreateDistributor(ctx context.Context, in DistributorInput, passwordHash string) (Distributor, error) {
	var d Distributor
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		acc, err := scanAccount(tx.QueryRow(ctx, insertAccountSQL, RoleDistributor, in.Email, in.Name, in.PhoneNumber, passwordHash))
		if err != nil {
			return translateWriteError(err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO distributor_profiles (account_id, gst_number, pan, address) VALUES ($1, $2, $3, $4)`,
			acc.ID, in.GSTNumber, in.PAN, in.Address)
		if err != nil {
			return translateWriteError(err)
		}
		d = Distributor{Account: acc, GSTNumber: in.GSTNumber, PAN: in.PAN, Address: in.Address}
		return nil
	})
	return d, err
}

func (s *PgStore) ListSalespeople(ctx context.Context) ([]Salesperson, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+`, p.employee_id, p.pan, p.address
FROM accounts a JOIN salesperson_profiles p ON p.account_id = a.id
WHERE a.kind = 'SALESPERSON'
ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("list salespeople: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Salesperson, error) {
		var sp Salesperson
		a := &sp.Account
		err := row.Scan(&a.ID, &a.Kind, &a.Email, &a.Name, &a.PhoneNumber, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt,
			&sp.EmployeeID, &sp.PAN, &sp.Address)
		return sp, err
	})
}

const distributorSelect = `SELECT ` + accountColumns + `, p.gst_number, p.pan, p.address
FROM accounts a JOIN distributor_profiles p ON p.account_id = a.id
WHERE a.kind = 'DISTRIBUTOR'`

func (s *PgStore) ListDistributors(ctx context.Context) ([]Distributor, error) {
	rows, err := s.pool.Query(ctx, distributorSelect+` ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("list distributors: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Distributor, error) {
		return scanDistributor(row)
	})
}

func (s *PgStore) UpdateDistributor(ctx context.Context, id int64, patch DistributorPatch, passwordHash *string) (Distributor, error) {
	var d Distributor
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET
    name          = COALESCE($2, name),
    email         = COALESCE($3, email),
    phone_number  = COALESCE($4, phone_number),
    password_hash = COALESCE($5, password_hash),
    updated_at    = now()
WHERE id = $1 AND kind = 'DISTRIBUTOR'`, id, patch.Name, patch.Email, patch.PhoneNumber, passwordHash)
		if err != nil {
			return translateWriteError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE distributor_profiles SET
    gst_number = COALESCE($2, gst_number),
    pan        = COALESCE($3, pan),
    address    = COALESCE($4, address)
WHERE account_id = $1`, id, patch.GSTNumber, patch.PAN, patch.Address)
		if err != nil {
			return fmt.Errorf("update distributor profile: %w", err)
		}
		d, err = scanDistributor(tx.QueryRow(ctx, distributorSelect+` AND a.id = $1`, id))
		return err
	})
	return d, err
}

func (s *PgStore) DeleteDistributor(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND kind = 'DISTRIBUTOR'`, id)
	if err != nil {
		if db.PgErrorCode(err) == db.CodeForeignKeyViolation {
			return ErrDistributorInUse
		}
		return fmt.Errorf("delete distributor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("find account by email: %w", err)
	}
	return acc, nil
}

func (s *PgStore) FindByID(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("find account by id: %w", err)
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Kind, &a.Email, &a.Name, &a.PhoneNumber, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanDistributor(row pgx.Row) (Distributor, error) {
	var d Distributor
	a := &d.Account
	err := row.Scan(&a.ID, &a.Kind, &a.Email, &a.Name, &a.PhoneNumber, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt,
		&d.GSTNumber, &d.PAN, &d.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return Distributor{}, ErrNotFound
	}
	return d, err
}

func translateWriteError(err error) error {
	if !db.IsUniqueViolation(err) {
		return fmt.Errorf("write account: %w", err)
	}
	switch db.ConstraintName(err) {
	case "accounts_salesperson_phone_key":
		return ErrPhoneTaken
	case "salesperson_profiles_employee_id_key":
		return ErrEmployeeIDTaken
	default:
		return ErrEmailTaken
	}
}
