package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"tour-optimization-service/internal/domain"
)

// Initialize the Postgres database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createManagersQuery := `
	CREATE TABLE IF NOT EXISTS managers (
		manager_id TEXT PRIMARY KEY,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		warehouse_lat DOUBLE PRECISION,
		warehouse_lng DOUBLE PRECISION,
		warehouse_address TEXT
	);
	`

	createDriversQuery := `
	CREATE TABLE IF NOT EXISTS drivers (
		driver_id TEXT PRIMARY KEY,
		manager_id TEXT NOT NULL REFERENCES managers(manager_id),
		name TEXT NOT NULL,
		current_lat DOUBLE PRECISION,
		current_lng DOUBLE PRECISION,
		warehouse_lat DOUBLE PRECISION,
		warehouse_lng DOUBLE PRECISION,
		warehouse_address TEXT,
		shift_from TEXT NOT NULL DEFAULT '',
		shift_to TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	`

	createTimeOffQuery := `
	CREATE TABLE IF NOT EXISTS driver_time_off (
		driver_id TEXT NOT NULL REFERENCES drivers(driver_id),
		day DATE NOT NULL,
		PRIMARY KEY (driver_id, day)
	);
	`

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		manager_id TEXT NOT NULL REFERENCES managers(manager_id)
	);
	`

	createWaypointsQuery := `
	CREATE TABLE IF NOT EXISTS waypoints (
		waypoint_id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(order_id),
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		service_seconds INTEGER NOT NULL DEFAULT 0,
		window_from TEXT NOT NULL DEFAULT '',
		window_to TEXT NOT NULL DEFAULT '',
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (order_id, position)
	);
	`

	createRoutesQuery := `
	CREATE TABLE IF NOT EXISTS routes (
		route_id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL REFERENCES drivers(driver_id),
		route_date DATE NOT NULL,
		status TEXT NOT NULL,
		meta JSONB NOT NULL DEFAULT '{}'::jsonb
	);
	`

	createRouteWaypointsQuery := `
	CREATE TABLE IF NOT EXISTS route_waypoints (
		route_id TEXT NOT NULL REFERENCES routes(route_id),
		waypoint_id TEXT NOT NULL REFERENCES waypoints(waypoint_id),
		position INTEGER NOT NULL,
		PRIMARY KEY (route_id, waypoint_id)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL
	);
	`

	createRouteMetricsCacheQuery := `
	CREATE TABLE IF NOT EXISTS route_metrics_cache (
		route_key TEXT PRIMARY KEY,
		duration_seconds INTEGER NOT NULL,
		length_meters INTEGER NOT NULL,
		polylines JSONB NOT NULL DEFAULT '[]'::jsonb
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_routes_driver_date
	ON routes(driver_id, route_date);
	`

	statements := []string{
		createManagersQuery,
		createDriversQuery,
		createTimeOffQuery,
		createOrdersQuery,
		createWaypointsQuery,
		createRoutesQuery,
		createRouteWaypointsQuery,
		createGeocodeCacheQuery,
		createRouteMetricsCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type LocationSeed struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type ManagerSeed struct {
	ManagerID string        `json:"manager_id"`
	Timezone  string        `json:"timezone"`
	Warehouse *LocationSeed `json:"warehouse"`
}

type DriverSeed struct {
	DriverID        string        `json:"driver_id"`
	ManagerID       string        `json:"manager_id"`
	Name            string        `json:"name"`
	CurrentLocation *LocationSeed `json:"current_location"`
	Warehouse       *LocationSeed `json:"warehouse"`
	ShiftFrom       string        `json:"shift_from"`
	ShiftTo         string        `json:"shift_to"`
	Capacity        int           `json:"capacity"`
}

type WaypointSeed struct {
	WaypointID     string       `json:"waypoint_id"`
	Kind           string       `json:"kind"`
	Location       LocationSeed `json:"location"`
	ServiceSeconds int          `json:"service_seconds"`
	WindowFrom     string       `json:"window_from"`
	WindowTo       string       `json:"window_to"`
	Completed      bool         `json:"completed"`
}

// Waypoints are listed in their required visiting sequence.
type OrderSeed struct {
	OrderID   string         `json:"order_id"`
	ManagerID string         `json:"manager_id"`
	Waypoints []WaypointSeed `json:"waypoints"`
}

type RouteSeed struct {
	RouteID     string           `json:"route_id"`
	DriverID    string           `json:"driver_id"`
	Date        string           `json:"date"`
	Status      string           `json:"status"`
	WaypointIDs []string         `json:"waypoint_ids"`
	Meta        domain.RouteMeta `json:"meta"`
}

type Seed struct {
	Managers []ManagerSeed `json:"managers"`
	Drivers  []DriverSeed  `json:"drivers"`
	Orders   []OrderSeed   `json:"orders"`
	Routes   []RouteSeed   `json:"routes"`
}

func (s Seed) validate() error {
	for i, m := range s.Managers {
		if strings.TrimSpace(m.ManagerID) == "" {
			return fmt.Errorf("manager at index %d: manager_id cannot be empty", i+1)
		}
	}
	for i, d := range s.Drivers {
		if strings.TrimSpace(d.DriverID) == "" || strings.TrimSpace(d.ManagerID) == "" {
			return fmt.Errorf("driver at index %d: driver_id and manager_id are required", i+1)
		}
	}
	for i, o := range s.Orders {
		if strings.TrimSpace(o.OrderID) == "" {
			return fmt.Errorf("order at index %d: order_id cannot be empty", i+1)
		}
		for j, w := range o.Waypoints {
			if strings.TrimSpace(w.WaypointID) == "" {
				return fmt.Errorf("order %s waypoint at index %d: waypoint_id cannot be empty", o.OrderID, j+1)
			}
			switch domain.WaypointKind(w.Kind) {
			case domain.WaypointCollection, domain.WaypointDelivery:
			default:
				return fmt.Errorf("order %s waypoint %s: unknown kind %q", o.OrderID, w.WaypointID, w.Kind)
			}
		}
	}
	for i, r := range s.Routes {
		if strings.TrimSpace(r.RouteID) == "" || strings.TrimSpace(r.DriverID) == "" {
			return fmt.Errorf("route at index %d: route_id and driver_id are required", i+1)
		}
	}
	return nil
}

// Populate the database with managers, drivers, orders and routes from a JSON file.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}
	if err := data.validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range data.Managers {
		lat, lng, addr := seedLocationArgs(m.Warehouse)
		if _, err := tx.Exec(`
		INSERT INTO managers (manager_id, timezone, warehouse_lat, warehouse_lng, warehouse_address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (manager_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			warehouse_lat = EXCLUDED.warehouse_lat,
			warehouse_lng = EXCLUDED.warehouse_lng,
			warehouse_address = EXCLUDED.warehouse_address;
		`, m.ManagerID, defaultString(m.Timezone, "UTC"), lat, lng, addr); err != nil {
			return fmt.Errorf("seed: insert manager_id=%s: %w", m.ManagerID, err)
		}
	}

	for _, d := range data.Drivers {
		curLat, curLng, _ := seedLocationArgs(d.CurrentLocation)
		whLat, whLng, whAddr := seedLocationArgs(d.Warehouse)
		if _, err := tx.Exec(`
		INSERT INTO drivers (driver_id, manager_id, name, current_lat, current_lng,
			warehouse_lat, warehouse_lng, warehouse_address, shift_from, shift_to, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (driver_id) DO UPDATE
		SET manager_id = EXCLUDED.manager_id,
			name = EXCLUDED.name,
			current_lat = EXCLUDED.current_lat,
			current_lng = EXCLUDED.current_lng,
			warehouse_lat = EXCLUDED.warehouse_lat,
			warehouse_lng = EXCLUDED.warehouse_lng,
			warehouse_address = EXCLUDED.warehouse_address,
			shift_from = EXCLUDED.shift_from,
			shift_to = EXCLUDED.shift_to,
			capacity = EXCLUDED.capacity;
		`, d.DriverID, d.ManagerID, d.Name, curLat, curLng, whLat, whLng, whAddr, d.ShiftFrom, d.ShiftTo, d.Capacity); err != nil {
			return fmt.Errorf("seed: insert driver_id=%s: %w", d.DriverID, err)
		}
	}

	for _, o := range data.Orders {
		if _, err := tx.Exec(`
		INSERT INTO orders (order_id, manager_id) VALUES ($1, $2)
		ON CONFLICT (order_id) DO UPDATE SET manager_id = EXCLUDED.manager_id;
		`, o.OrderID, o.ManagerID); err != nil {
			return fmt.Errorf("seed: insert order_id=%s: %w", o.OrderID, err)
		}

		for pos, w := range o.Waypoints {
			if _, err := tx.Exec(`
			INSERT INTO waypoints (waypoint_id, order_id, position, kind, lat, lng, address,
				service_seconds, window_from, window_to, completed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (waypoint_id) DO UPDATE
			SET order_id = EXCLUDED.order_id,
				position = EXCLUDED.position,
				kind = EXCLUDED.kind,
				lat = EXCLUDED.lat,
				lng = EXCLUDED.lng,
				address = EXCLUDED.address,
				service_seconds = EXCLUDED.service_seconds,
				window_from = EXCLUDED.window_from,
				window_to = EXCLUDED.window_to,
				completed = EXCLUDED.completed;
			`, w.WaypointID, o.OrderID, pos, w.Kind, w.Location.Lat, w.Location.Lng, w.Location.Address,
				w.ServiceSeconds, w.WindowFrom, w.WindowTo, w.Completed); err != nil {
				return fmt.Errorf("seed: insert waypoint_id=%s: %w", w.WaypointID, err)
			}
		}
	}

	for _, r := range data.Routes {
		meta, err := json.Marshal(r.Meta)
		if err != nil {
			return fmt.Errorf("seed: encode meta route_id=%s: %w", r.RouteID, err)
		}
		if _, err := tx.Exec(`
		INSERT INTO routes (route_id, driver_id, route_date, status, meta)
		VALUES ($1, $2, $3::date, $4, $5)
		ON CONFLICT (route_id) DO UPDATE
		SET driver_id = EXCLUDED.driver_id,
			route_date = EXCLUDED.route_date,
			status = EXCLUDED.status,
			meta = EXCLUDED.meta;
		`, r.RouteID, r.DriverID, r.Date, defaultString(r.Status, domain.RouteStatusAwaiting), meta); err != nil {
			return fmt.Errorf("seed: insert route_id=%s: %w", r.RouteID, err)
		}

		if _, err := tx.Exec(`DELETE FROM route_waypoints WHERE route_id = $1;`, r.RouteID); err != nil {
			return fmt.Errorf("seed: reset route_waypoints route_id=%s: %w", r.RouteID, err)
		}
		for pos, wid := range r.WaypointIDs {
			if _, err := tx.Exec(`
			INSERT INTO route_waypoints (route_id, waypoint_id, position) VALUES ($1, $2, $3);
			`, r.RouteID, wid, pos); err != nil {
				return fmt.Errorf("seed: insert route_waypoint route_id=%s waypoint_id=%s: %w", r.RouteID, wid, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}

func seedLocationArgs(l *LocationSeed) (sql.NullFloat64, sql.NullFloat64, sql.NullString) {
	if l == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}, sql.NullString{}
	}
	return sql.NullFloat64{Float64: l.Lat, Valid: true},
		sql.NullFloat64{Float64: l.Lng, Valid: true},
		sql.NullString{String: l.Address, Valid: l.Address != ""}
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
