package attachments

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"portal-backend/internal/audit"
	"portal-backend/internal/config"
	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
	"portal-backend/pkg/utils"
)

// StorageDir resolves the attachment storage root.
func StorageDir() string {
	return config.GetEnvOrDefault("ATTACHMENT_DIR", "./data/attachments")
}

// HandleUpload stages, validates, scans and stores an attachment for the
// plan. The stored object name is a UUID; the sanitized original filename
// is kept for downloads.
func HandleUpload(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		utils.SendError(c, apperrors.Validation("missing file field"))
		return
	}

	filename := SanitizeFilename(file.Filename)
	contentType := file.Header.Get("Content-Type")
	if err := ValidateUpload(filename, contentType, file.Size); err != nil {
		utils.SendError(c, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.SendError(c, err)
		return
	}
	defer src.Close()

	dir := filepath.Join(StorageDir(), strconv.FormatUint(uint64(plan.ID), 10))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		utils.SendError(c, err)
		return
	}

	storageName := uuid.NewString() + filepath.Ext(filename)
	storagePath := filepath.Join(dir, storageName)
	dst, err := os.OpenFile(storagePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, hasher), io.LimitReader(src, MaxAttachmentSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(storagePath)
		utils.SendError(c, err)
		return
	}
	if written > MaxAttachmentSize {
		os.Remove(storagePath)
		utils.SendError(c, apperrors.Validation(fmt.Sprintf("file exceeds the %d MiB limit", MaxAttachmentSize>>20)))
		return
	}

	if err := ScanFile(storagePath); err != nil {
		os.Remove(storagePath)
		utils.SendError(c, err)
		return
	}

	attachment := models.BCAttachment{
		PlanID:      plan.ID,
		Filename:    filename,
		StoragePath: storagePath,
		ContentType: contentType,
		Size:        written,
		UploaderID:  c.GetUint("user_id"),
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
	}
	if err := database.DB.Create(&attachment).Error; err != nil {
		os.Remove(storagePath)
		utils.SendError(c, err)
		return
	}

	audit.Record(database.DB, plan.ID, audit.ActionAttachmentAdded, attachment.UploaderID, map[string]interface{}{
		"attachment_id": attachment.ID,
		"filename":      filename,
	})
	c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
}

// HandleList returns the plan's attachments, newest first.
func HandleList(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	var list []models.BCAttachment
	if err := database.DB.Where("plan_id = ?", plan.ID).
		Order("created_at DESC").Find(&list).Error; err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": list})
}

// HandleDownload streams an attachment back under its original filename.
func HandleDownload(c *gin.Context) {
	attachment, ok := attachmentForRequest(c)
	if !ok {
		return
	}
	c.FileAttachment(attachment.StoragePath, attachment.Filename)
}

// HandleDelete removes an attachment record and its stored object.
func HandleDelete(c *gin.Context) {
	attachment, ok := attachmentForRequest(c)
	if !ok {
		return
	}

	if err := database.DB.Delete(attachment).Error; err != nil {
		utils.SendError(c, err)
		return
	}
	if err := os.Remove(attachment.StoragePath); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("path", attachment.StoragePath).
			Warn("failed to remove attachment object")
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func attachmentForRequest(c *gin.Context) (*models.BCAttachment, bool) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return nil, false
	}

	attachmentID, err := strconv.ParseUint(c.Param("attachmentId"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid attachment id"))
		return nil, false
	}

	var attachment models.BCAttachment
	if err := database.DB.Where("id = ? AND plan_id = ?", attachmentID, plan.ID).
		First(&attachment).Error; err != nil {
		utils.SendError(c, apperrors.NotFound("attachment"))
		return nil, false
	}
	return &attachment, true
}
