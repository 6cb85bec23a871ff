package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tapinapp/beacon/internal/directory"
	"github.com/tapinapp/beacon/internal/phone"
	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
	"github.com/tapinapp/beacon/internal/platform/id"
)

// writeError maps a domain error onto an HTTP response.
func writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the log, not the response body.
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message, "code": string(code)})
}

func (s *Server) handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "beacon"})
	}
}

type registerRequest struct {
	Phone string `json:"phone"`
}

// handleRegister creates the caller's directory identity from their verified
// token claims. Replays are harmless upserts.
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}

		identity := directory.Identity{
			ID:          claims.UserID,
			DisplayName: claims.Name,
			Email:       claims.Email,
		}
		if raw := strings.TrimSpace(req.Phone); raw != "" {
			identity.PhoneKey = phone.NormalizeKey(raw)
		}

		if err := s.deps.Directory.PutIdentity(c.Request.Context(), identity); err != nil {
			log.Printf("register %s: %v", claims.UserID, err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": identity.ID})
	}
}

type contactEntry struct {
	ContactID   string `json:"contact_id"`
	DisplayName string `json:"display_name,omitempty"`
	Group       string `json:"group,omitempty"`
}

// handleContactList returns the caller's reconciled roster edges.
func (s *Server) handleContactList() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if s.deps.Roster == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		edges, err := s.deps.Roster.ListContacts(c.Request.Context(), claims.UserID)
		if err != nil {
			log.Printf("contact list %s: %v", claims.UserID, err)
			writeError(c, err)
			return
		}

		contacts := make([]contactEntry, 0, len(edges))
		for _, edge := range edges {
			contacts = append(contacts, contactEntry{
				ContactID:   edge.ContactID,
				DisplayName: edge.DisplayName,
				Group:       edge.GroupLabel,
			})
		}
		c.JSON(http.StatusOK, gin.H{"contacts": contacts})
	}
}

type contactSyncRequest struct {
	Numbers []string `json:"numbers" binding:"required"`
}

// handleContactSync accepts the caller's raw contact numbers and reconciles
// roster edges in the background. The reply only acknowledges acceptance;
// reconciliation outcomes surface in the log.
func (s *Server) handleContactSync() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if s.deps.Reconciler == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var req contactSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if len(phone.NormalizeKeys(req.Numbers)) == 0 {
			writeError(c, apperrors.New(apperrors.CodeContactSyncNumbersEmpty, "at least one contact number is required"))
			return
		}

		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			report, err := s.deps.Reconciler.SyncContacts(ctx, claims.UserID, req.Numbers)
			if err != nil {
				log.Printf("contact sync %s: %v", claims.UserID, err)
				return
			}
			log.Printf("contact sync %s: %d matched, %d not found", claims.UserID, report.MatchedCount, len(report.NotFound))
		}()

		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

type deviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (s *Server) handleDeviceToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if s.deps.Tokens == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var req deviceTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if err := s.deps.Tokens.PutToken(c.Request.Context(), claims.UserID, req.Token); err != nil {
			log.Printf("device token %s: %v", claims.UserID, err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "registered"})
	}
}

// handleDeviceTokenDelete revokes the caller's registration, typically on
// sign-out. Later fanout for the caller drops instead of pushing to a
// device they no longer hold.
func (s *Server) handleDeviceTokenDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if s.deps.Tokens == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := s.deps.Tokens.DeleteToken(c.Request.Context(), claims.UserID); err != nil {
			log.Printf("device token delete %s: %v", claims.UserID, err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "revoked"})
	}
}

// handleAvatarUpload stores the uploaded image and fans out the avatar
// change. The "room" form flag switches the audience from the subject's
// reverse roster to the room's full membership.
func (s *Server) handleAvatarUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		if s.cfg.AvatarDir == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		file, err := c.FormFile("avatar")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
			return
		}

		subjectID := strings.TrimSpace(c.PostForm("subject"))
		if subjectID == "" {
			subjectID = claims.UserID
		}
		roomAvatar := c.PostForm("room") == "true"

		ext := filepath.Ext(file.Filename)
		generated, err := id.NewID()
		if err != nil {
			log.Printf("avatar id %s: %v", subjectID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		name := generated + ext
		if err := c.SaveUploadedFile(file, filepath.Join(s.cfg.AvatarDir, name)); err != nil {
			log.Printf("avatar upload %s: %v", subjectID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		avatarURL := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/avatars/" + name
		if err := s.deps.Engine.OnAvatarChanged(c.Request.Context(), subjectID, avatarURL, roomAvatar); err != nil {
			log.Printf("avatar fanout %s: %v", subjectID, err)
		}

		c.JSON(http.StatusCreated, gin.H{"url": avatarURL})
	}
}

func (s *Server) handleAvatarGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := filepath.Base(c.Param("name"))
		if name == "." || name == "/" || strings.HasPrefix(name, ".") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid avatar name"})
			return
		}
		c.File(filepath.Join(s.cfg.AvatarDir, name))
	}
}

type offlineMessageEvent struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id" binding:"required"`
}

func (s *Server) handleOfflineMessageEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event offlineMessageEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if err := s.deps.Engine.OnOfflineMessageStored(c.Request.Context(), event.SenderID, event.RecipientID); err != nil {
			log.Printf("offline message event: %v", err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

type mucMessageEvent struct {
	RoomID   string `json:"room_id" binding:"required"`
	RoomJID  string `json:"room_jid" binding:"required"`
	SenderID string `json:"sender_id"`
}

func (s *Server) handleMucMessageEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event mucMessageEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if err := s.deps.Engine.OnMucMessageReceived(c.Request.Context(), event.RoomID, event.RoomJID, event.SenderID); err != nil {
			log.Printf("muc message event: %v", err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

type profileChangedEvent struct {
	SubjectID  string `json:"subject_id" binding:"required"`
	SubjectJID string `json:"subject_jid" binding:"required"`
}

func (s *Server) handleProfileChangedEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event profileChangedEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if err := s.deps.Engine.OnProfileChanged(c.Request.Context(), event.SubjectID, event.SubjectJID); err != nil {
			log.Printf("profile changed event: %v", err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

type avatarChangedEvent struct {
	SubjectID  string `json:"subject_id" binding:"required"`
	AvatarURL  string `json:"avatar_url" binding:"required"`
	RoomAvatar bool   `json:"room_avatar"`
}

func (s *Server) handleAvatarChangedEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event avatarChangedEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if err := s.deps.Engine.OnAvatarChanged(c.Request.Context(), event.SubjectID, event.AvatarURL, event.RoomAvatar); err != nil {
			log.Printf("avatar changed event: %v", err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

type occupantEvent struct {
	RoomID     string `json:"room_id" binding:"required"`
	IdentityID string `json:"identity_id" binding:"required"`
}

// handleOccupantJoined records the occupant in the live registry and grows
// the room's persisted membership, which tracks everyone ever added.
func (s *Server) handleOccupantJoined() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event occupantEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if s.deps.Members != nil {
			if err := s.deps.Members.AddMember(c.Request.Context(), event.RoomID, event.IdentityID); err != nil {
				log.Printf("occupant joined %s/%s: %v", event.RoomID, event.IdentityID, err)
				writeError(c, err)
				return
			}
		}
		s.deps.Occupancy.Join(event.RoomID, event.IdentityID)
		c.JSON(http.StatusOK, gin.H{"status": "joined"})
	}
}

func (s *Server) handleOccupantLeft() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event occupantEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		s.deps.Occupancy.Leave(event.RoomID, event.IdentityID)
		c.JSON(http.StatusOK, gin.H{"status": "left"})
	}
}

// handleMemberRemoved drops the identity from the room's persisted
// membership, shrinking the audience of future room fanout. The identity
// also leaves the live occupancy in case the chat server skips the
// occupant-left webhook for kicks.
func (s *Server) handleMemberRemoved() gin.HandlerFunc {
	return func(c *gin.Context) {
		var event occupantEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if s.deps.Members != nil {
			if err := s.deps.Members.RemoveMember(c.Request.Context(), event.RoomID, event.IdentityID); err != nil {
				log.Printf("member removed %s/%s: %v", event.RoomID, event.IdentityID, err)
				writeError(c, err)
				return
			}
		}
		s.deps.Occupancy.Leave(event.RoomID, event.IdentityID)
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
	}
}
