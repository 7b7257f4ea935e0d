package services

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

type CityView struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	State string `db:"state" json:"state"`
}

type ZoneView struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type LocalityView struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
}

type CategoryView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Department NamedRef `json:"department"`
}

func ListCities(ctx context.Context, q sqlx.QueryerContext) ([]CityView, error) {
	cities := []CityView{}
	err := sqlx.SelectContext(ctx, q, &cities, `SELECT id, name, state FROM cities ORDER BY name ASC`)
	return cities, WrapError(err, "list cities")
}

func ListZones(ctx context.Context, q sqlx.QueryerContext, cityID string) ([]ZoneView, error) {
	if strings.TrimSpace(cityID) == "" {
		return nil, ErrBadRequest("cityId is required")
	}
	zones := []ZoneView{}
	err := sqlx.SelectContext(ctx, q, &zones, `SELECT id, name FROM zones WHERE city_id = $1 ORDER BY name ASC`, cityID)
	return zones, WrapError(err, "list zones")
}

func ListLocalities(ctx context.Context, q sqlx.QueryerContext, zoneID string) ([]LocalityView, error) {
	if strings.TrimSpace(zoneID) == "" {
		return nil, ErrBadRequest("zoneId is required")
	}
	localities := []LocalityView{}
	err := sqlx.SelectContext(ctx, q, &localities, `
SELECT id, name, latitude, longitude FROM localities WHERE zone_id = $1 ORDER BY name ASC
`, zoneID)
	return localities, WrapError(err, "list localities")
}

func ListCategories(ctx context.Context, q sqlx.QueryerContext) ([]CategoryView, error) {
	rows := []struct {
		ID             string `db:"id"`
		Name           string `db:"name"`
		DepartmentID   string `db:"department_id"`
		DepartmentName string `db:"department_name"`
	}{}
	if err := sqlx.SelectContext(ctx, q, &rows, `
SELECT c.id, c.name, d.id AS department_id, d.name AS department_name
FROM issue_categories c
JOIN departments d ON d.id = c.department_id
ORDER BY c.name ASC
`); err != nil {
		return nil, WrapError(err, "list categories")
	}
	categories := make([]CategoryView, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, CategoryView{
			ID:         row.ID,
			Name:       row.Name,
			Department: NamedRef{ID: row.DepartmentID, Name: row.DepartmentName},
		})
	}
	return categories, nil
}
