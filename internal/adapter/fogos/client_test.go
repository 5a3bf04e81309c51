package fogos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// stubFetcher serves canned bodies keyed by URL.
type stubFetcher map[string]string

func (s stubFetcher) Get(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := s[rawURL]
	if !ok {
		return nil, &domain.FetchExhaustedError{URL: rawURL, Attempts: 3, StatusCode: 503, Err: errors.New("status 503")}
	}
	return []byte(body), nil
}

const incidentsBody = `{
  "success": true,
  "data": [
    {"id": "2025080012345", "lat": "40.61", "lng": -8.05, "status": "Em Curso", "statusCode": 5,
     "man": 120, "terrain": "35", "aerial": 4, "important": true,
     "district": "Viseu", "concelho": "Tondela", "freguesia": "Caramulo", "natureza": "Mato",
     "date": "19-10-2025", "hour": "14:32"},
    {"id": 77, "lat": 41.2, "lng": "-7.1", "statusCode": "12", "man": null, "date": "", "hour": ""}
  ]
}`

func TestClient_Incidents(t *testing.T) {
	lisbon, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)
	c := NewClient(stubFetcher{"fires": incidentsBody}, lisbon)

	got, err := c.Incidents(context.Background(), "fires")
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "2025080012345", first.ID)
	assert.InDelta(t, 40.61, first.Latitude, 1e-9)
	assert.InDelta(t, -8.05, first.Longitude, 1e-9)
	assert.Equal(t, 5, first.StatusCode)
	assert.Equal(t, 120, first.Personnel)
	assert.Equal(t, 35, first.GroundUnits)
	assert.Equal(t, 4, first.AerialUnits)
	assert.True(t, first.Important)
	assert.Equal(t, "Tondela", first.Municipality)
	assert.Equal(t, "Caramulo", first.Parish)
	assert.Equal(t, "Mato", first.Nature)
	assert.Equal(t, time.Date(2025, 10, 19, 14, 32, 0, 0, lisbon), first.StartedAt)

	second := got[1]
	assert.Equal(t, "77", second.ID)
	assert.Equal(t, domain.StatusFalseAlarm, second.StatusCode)
	assert.Zero(t, second.Personnel)
	assert.True(t, second.StartedAt.IsZero())
}

func TestClient_Incidents_Unsuccessful(t *testing.T) {
	c := NewClient(stubFetcher{"fires": `{"success": false, "message": "maintenance"}`}, nil)

	_, err := c.Incidents(context.Background(), "fires")

	require.ErrorIs(t, err, ErrUnsuccessful)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_Incidents_FetchError(t *testing.T) {
	c := NewClient(stubFetcher{}, nil)

	_, err := c.Incidents(context.Background(), "fires")

	var exhausted *domain.FetchExhaustedError
	assert.True(t, errors.As(err, &exhausted))
}

func TestClient_Incidents_BadNumber(t *testing.T) {
	c := NewClient(stubFetcher{"fires": `{"success": true, "data": [{"lat": "north"}]}`}, nil)

	_, err := c.Incidents(context.Background(), "fires")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode fires")
}

const riskBody = `{
  "success": true,
  "data": {
    "dataPrev": "2025-10-20T00:00:00",
    "local": {
      "1824": {"data": {"rcm": 4}},
      "0105": {"data": {"rcm": "2"}},
      "1101": {"data": {}}
    }
  }
}`

func TestClient_Risk(t *testing.T) {
	c := NewClient(stubFetcher{"risk-tomorrow": riskBody}, nil)

	got, err := c.Risk(context.Background(), "risk-tomorrow")
	require.NoError(t, err)

	assert.Equal(t, "2025-10-20", got.Date)
	assert.Equal(t, map[string]int{"1824": 4, "0105": 2, "1101": 0}, got.Classes)
}

func TestClient_Risk_Unsuccessful(t *testing.T) {
	c := NewClient(stubFetcher{"risk-today": `{"success": false, "message": "sem dados"}`}, nil)

	_, err := c.Risk(context.Background(), "risk-today")

	require.ErrorIs(t, err, ErrUnsuccessful)
	assert.Contains(t, err.Error(), "sem dados")
}

func TestForecastDate(t *testing.T) {
	assert.Equal(t, "2025-10-20", forecastDate("2025-10-20T13:00:00Z"))
	assert.Equal(t, "2025-10-20", forecastDate("2025-10-20"))
	assert.Equal(t, "amanhã", forecastDate(" amanhã "))
	assert.Empty(t, forecastDate(""))
}
