package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"
)

// Postgres-backed implementation of the DriverRepository and ManagerRepository ports.
type PostgresDriverRepository struct{ DB *sql.DB }

var (
	_ ports.DriverRepository  = (*PostgresDriverRepository)(nil)
	_ ports.ManagerRepository = (*PostgresDriverRepository)(nil)
)

func NewPostgresDriverRepository(db *sql.DB) *PostgresDriverRepository {
	return &PostgresDriverRepository{DB: db}
}

// Return the manager's active drivers that are not off on date.
// An empty driverIDs selects every such driver.
func (r *PostgresDriverRepository) ListDriversForOptimization(
	ctx context.Context,
	managerID string,
	driverIDs []string,
	date time.Time,
) (_ []domain.Driver, err error) {
	defer obs.Time(ctx, "drivers.ListDriversForOptimization")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres driver repository: DB is nil")
	}

	query := `
	SELECT
		d.driver_id,
		d.name,
		d.current_lat,
		d.current_lng,
		d.warehouse_lat,
		d.warehouse_lng,
		d.warehouse_address,
		d.shift_from,
		d.shift_to,
		d.capacity
	FROM drivers d
	WHERE d.manager_id = $1
		AND d.active
		AND (cardinality($2::text[]) = 0 OR d.driver_id = ANY($2::text[]))
		AND NOT EXISTS (
			SELECT 1 FROM driver_time_off t
			WHERE t.driver_id = d.driver_id AND t.day = $3::date
		)
	ORDER BY d.driver_id;
	`
	if driverIDs == nil {
		driverIDs = []string{}
	}
	rows, err := r.DB.QueryContext(ctx, query, managerID, driverIDs, date.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("list drivers: query drivers table: %w", err)
	}
	defer rows.Close()

	drivers := make([]domain.Driver, 0, 16)
	for rows.Next() {
		var d domain.Driver
		var curLat, curLng, whLat, whLng sql.NullFloat64
		var whAddr sql.NullString
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&curLat,
			&curLng,
			&whLat,
			&whLng,
			&whAddr,
			&d.Shift.From,
			&d.Shift.To,
			&d.Capacity,
		); err != nil {
			return nil, fmt.Errorf("list drivers: scan row: %w", err)
		}
		d.CurrentLocation = nullableLocation(curLat, curLng, sql.NullString{})
		d.Warehouse = nullableLocation(whLat, whLng, whAddr)
		drivers = append(drivers, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drivers: row iteration: %w", err)
	}

	return drivers, nil
}

// Return the manager, or nil when it does not exist.
func (r *PostgresDriverRepository) GetManager(ctx context.Context, id string) (_ *domain.Manager, err error) {
	defer obs.Time(ctx, "managers.GetManager")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres driver repository: DB is nil")
	}

	query := `
	SELECT manager_id, timezone, warehouse_lat, warehouse_lng, warehouse_address
	FROM managers
	WHERE manager_id = $1;
	`
	var m domain.Manager
	var lat, lng sql.NullFloat64
	var addr sql.NullString
	err = r.DB.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.Timezone, &lat, &lng, &addr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manager: query managers table: %w", err)
	}
	m.Warehouse = nullableLocation(lat, lng, addr)
	return &m, nil
}

func nullableLocation(lat, lng sql.NullFloat64, addr sql.NullString) *domain.Location {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Location{Lat: lat.Float64, Lng: lng.Float64, Address: addr.String}
}
