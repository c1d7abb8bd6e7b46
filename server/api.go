package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wtfashwin/Quiz-App/logger"
	"github.com/wtfashwin/Quiz-App/room"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type RoomResponse struct {
	Room    any `json:"room"`
	Players any `json:"players"`
	Scores  any `json:"scores"`
}

func (s *GameServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"rooms":  s.rooms.Count(),
		"time":   time.Now().UTC(),
	})
}

// GET /api/rooms
func (s *GameServer) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, s.rooms.ListRooms())
}

// GET /api/rooms/:id
func (s *GameServer) handleGetRoom(c *gin.Context) {
	rm, err := s.rooms.GetRoom(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	var resp RoomResponse
	err = rm.Do(c.Request.Context(), func(st *room.State) error {
		resp.Players = st.Players()
		resp.Scores = st.Scores()
		return nil
	})
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "room busy"})
		return
	}
	resp.Room = rm.Summary()
	c.JSON(http.StatusOK, resp)
}

// GET /api/leaderboard?limit=n
func (s *GameServer) handleLeaderboard(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "leaderboard disabled"})
		return
	}
	entries, err := s.results.Leaderboard(c.Request.Context(), limitParam(c))
	if err != nil {
		logger.Log.Errorw("leaderboard query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GET /api/games?limit=n
func (s *GameServer) handleRecentGames(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "game archive disabled"})
		return
	}
	games, err := s.results.RecentGames(c.Request.Context(), limitParam(c))
	if err != nil {
		logger.Log.Errorw("recent games query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, games)
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
