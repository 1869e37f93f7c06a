package wildberries

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boxTariffsBody = `{
  "response": {
    "data": {
      "dtNextBox": "2025-08-21",
      "dtTillMax": "2025-08-31",
      "warehouseList": [
        {
          "boxDeliveryBase": "46",
          "boxDeliveryCoefExpr": "100",
          "boxDeliveryLiter": "14",
          "boxDeliveryMarketplaceBase": "40",
          "boxDeliveryMarketplaceCoefExpr": "125",
          "boxDeliveryMarketplaceLiter": "11,2",
          "boxStorageBase": "0,07",
          "boxStorageCoefExpr": "100",
          "boxStorageLiter": "0,07",
          "geoName": "Центральный федеральный округ",
          "warehouseName": "Коледино"
        }
      ]
    }
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "wb-key",
		Retries:    1,
		RetryDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetBoxTariffs_Success(t *testing.T) {
	var gotPath, gotDate, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(boxTariffsBody))
	})

	resp, err := client.GetBoxTariffs(context.Background(), time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/tariffs/box", gotPath)
	assert.Equal(t, "2025-08-20", gotDate)
	assert.Equal(t, "wb-key", gotAuth)

	require.NotNil(t, resp.Tariffs)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Empty())
	require.Len(t, resp.Tariffs.WarehouseList, 1)
	assert.Equal(t, "Коледино", resp.Tariffs.WarehouseList[0].WarehouseName)
	assert.Equal(t, "11,2", resp.Tariffs.WarehouseList[0].BoxDeliveryMarketplaceLiter)

	until, err := resp.Tariffs.ValidUntil()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), until)
}

func TestGetBoxTariffs_DomainErrorVariants(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   APIError
	}{
		{
			name:   "error body on 200",
			status: http.StatusOK,
			body:   `{"title":"unauthorized","detail":"token expired","origin":"s2s-api-auth","requestId":"abc"}`,
			want:   APIError{StatusCode: 200, Title: "unauthorized", Detail: "token expired", Origin: "s2s-api-auth", RequestID: "abc"},
		},
		{
			name:   "error body on 400",
			status: http.StatusBadRequest,
			body:   `{"title":"bad request","detail":"invalid date","requestId":"r-1"}`,
			want:   APIError{StatusCode: 400, Title: "bad request", Detail: "invalid date", RequestID: "r-1"},
		},
		{
			name:   "non-object body",
			status: http.StatusOK,
			body:   `"maintenance"`,
			want:   APIError{StatusCode: 200, Title: `"maintenance"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			resp, err := client.GetBoxTariffs(context.Background(), time.Now())

			require.NoError(t, err)
			assert.Nil(t, resp.Tariffs)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.want, *resp.Error)
		})
	}
}

func TestGetBoxTariffs_EmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := client.GetBoxTariffs(context.Background(), time.Now())

	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestGetBoxTariffs_InvalidPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"data":{"warehouseList":[{"warehouseName":"Коледино"}]}}}`))
	})

	_, err := client.GetBoxTariffs(context.Background(), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate box tariffs")
}

func TestGetBoxTariffs_KeepsEntriesWithoutName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"data":{"dtTillMax":"2025-08-31","warehouseList":[{"warehouseName":"Коледино","geoName":"x"},{"geoName":"y"}]}}}`))
	})

	resp, err := client.GetBoxTariffs(context.Background(), time.Now())

	require.NoError(t, err)
	require.NotNil(t, resp.Tariffs)
	require.Len(t, resp.Tariffs.WarehouseList, 2)
	assert.NoError(t, resp.Tariffs.WarehouseList[0].Validate())
	assert.Error(t, resp.Tariffs.WarehouseList[1].Validate())
}

func TestGetBoxTariffs_ResponseWithoutDataIsEmpty(t *testing.T) {
	for _, body := range []string{`{"response":{}}`, `{"response":{"data":null}}`} {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		resp, err := client.GetBoxTariffs(context.Background(), time.Now())

		require.NoError(t, err, body)
		assert.True(t, resp.Empty(), body)
	}
}

func TestGetBoxTariffs_UpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetBoxTariffs(context.Background(), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed request (status: 503), attempts: 2")
}

func TestValidUntil_Layouts(t *testing.T) {
	for _, value := range []string{"2025-08-31", "2025-08-31T00:00:00Z", "2025-08-31 00:00:00"} {
		b := BoxTariffs{DtTillMax: value}
		got, err := b.ValidUntil()
		require.NoError(t, err, value)
		assert.Equal(t, "2025-08-31", got.Format("2006-01-02"))
	}

	_, err := (&BoxTariffs{DtTillMax: "soon"}).ValidUntil()
	assert.Error(t, err)
}
