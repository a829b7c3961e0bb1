package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"portal-backend/internal/database"
	"portal-backend/internal/models"
)

// HandleLogin authenticates a user and establishes the session and CSRF
// cookies. The active company defaults to the user's first membership unless
// company_id selects another one they belong to.
func HandleLogin(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		CompanyID uint   `json:"company_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account disabled"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	companyID, role, err := resolveMembership(database.DB, user, req.CompanyID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No company membership"})
		return
	}

	token, expiry, csrfToken, err := GenerateToken(user, companyID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	SetAuthCookie(c, token, expiry, csrfToken)

	now := time.Now().UTC()
	database.DB.Model(&user).Update("last_login", now)

	c.JSON(http.StatusOK, gin.H{
		"user":       gin.H{"id": user.ID, "email": user.Email, "name": user.Name},
		"company_id": companyID,
		"role":       role,
		"csrf_token": csrfToken,
		"expires_at": expiry,
	})
}

// HandleLogout drops the session cookies.
func HandleLogout(c *gin.Context) {
	ClearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// HandleGetSession reports the authenticated principal (the collaborator
// contract consumed by the BCP and billing core).
func HandleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":    c.GetUint("user_id"),
		"email":      c.GetString("email"),
		"company_id": c.GetUint("company_id"),
		"role":       c.GetString("role"),
	})
}

func resolveMembership(db *gorm.DB, user models.User, wantCompany uint) (uint, string, error) {
	if user.IsSuperAdmin() {
		// Superadmins may act in any company scope.
		companyID := wantCompany
		if companyID == 0 {
			var company models.Company
			if err := db.Order("id").First(&company).Error; err != nil {
				return 0, "", err
			}
			companyID = company.ID
		}
		return companyID, models.RoleSuperAdmin, nil
	}

	query := db.Where("user_id = ?", user.ID)
	if wantCompany != 0 {
		query = query.Where("company_id = ?", wantCompany)
	}
	var member models.CompanyMember
	if err := query.Order("company_id").First(&member).Error; err != nil {
		return 0, "", err
	}
	return member.CompanyID, member.Role, nil
}
