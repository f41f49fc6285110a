// internal/handlers/rooms_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRoomsEndpoint(t *testing.T) {
	srv := NewGameServer()
	host := newTestClient()
	room := createRoomVia(t, srv, host, "ნინო", "tok-host")

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	ListRoomsHandler(srv)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var listing []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing, 1)

	entry := listing[0]
	assert.Equal(t, room.Code, entry["code"])
	assert.Equal(t, "ნინო", entry["hostNick"])
	assert.Equal(t, float64(1), entry["playerCount"])
	assert.Equal(t, float64(8), entry["maxPlayers"])
	// No identifiers or tokens leak through the projection.
	assert.NotContains(t, entry, "hostId")
	assert.NotContains(t, entry, "players")
	assert.NotContains(t, entry, "sessionToken")

	settings := entry["settings"].(map[string]interface{})
	assert.Equal(t, float64(5), settings["rounds"])
	assert.Equal(t, false, settings["hasBonus"])
}

func TestListRoomsRejectsNonGet(t *testing.T) {
	srv := NewGameServer()
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	ListRoomsHandler(srv)(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
