package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Company   string    `gorm:"size:200" json:"company"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Mobile    string    `gorm:"size:20" json:"mobile"`
	ImageUrl  string    `json:"image_url"`
	Password  string    `gorm:"size:255;not null" json:"password"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) GetId() int {
	return u.ID
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
	Mobile   string `json:"mobile"`
	Password string `json:"password" binding:"required,min=8"`
}

type UpdateProfileInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type LoginInfo struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	ImageUrl string `json:"image_url"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func validateContactFields(email string, phone string, mobile string) error {
	fe := FieldErrors{}
	if email != "" && !utils.IsValidEmail(email) {
		fe["email"] = "invalid email address"
	}
	if phone != "" {
		if err := utils.ValidatePhoneNumber(phone, utils.DefaultPhoneRegion); err != nil {
			fe["phone"] = "invalid phone number"
		}
	}
	if mobile != "" {
		if err := utils.ValidatePhoneNumber(mobile, utils.DefaultPhoneRegion); err != nil {
			fe["mobile"] = "invalid mobile number"
		}
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	if err := validateContactFields(input.Email, input.Phone, input.Mobile); err != nil {
		return nil, err
	}

	var count int64
	err := db.WithContext(ctx).Model(&User{}).
		Where("username = ?", input.Username).Or("email = ?", input.Email).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, FieldErrors{"username": "username or email already taken"}
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: strings.TrimSpace(input.Username),
		Name:     strings.TrimSpace(input.Name),
		Company:  strings.TrimSpace(input.Company),
		Phone:    input.Phone,
		Mobile:   input.Mobile,
		Password: string(hashedPassword),
		IsActive: utils.NewTrue(),
	}
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" {
		user.Email = &email
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

// Login checks credentials and issues a JWT. The token's jti is stored in
// Redis for the token lifespan; logout removes it, revoking the token before
// its natural expiry.
func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	user := User{}
	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	// Any compare failure rejects the login, including a corrupted stored
	// hash, not just a plain mismatch.
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errors.New("invalid username or password")
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	token, jti, err := utils.JwtGenerate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, jti); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+jti, user.Username, utils.TokenLifespan()); err != nil {
		return nil, err
	}

	result := LoginInfo{
		Token:    token,
		Name:     user.Name,
		Username: user.Username,
		Email:    utils.DereferencePtr(user.Email),
		Company:  user.Company,
		ImageUrl: user.ImageUrl,
	}
	return &result, nil
}

// Logout destroys the current token's session.
func Logout(ctx context.Context) (bool, error) {
	jti, ok := utils.GetTokenIdFromContext(ctx)
	if !ok || jti == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + jti); err != nil {
		return false, err
	}
	// remove current token from the user's tokens set
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, jti); err != nil {
		return false, err
	}
	return true, nil
}

// RevokeAllTokens kills every live session of the user (password change).
func RevokeAllTokens(username string) error {
	jtis, err := config.GetRedisSetMembers("Tokens:" + username)
	if err != nil {
		return err
	}
	for _, jti := range jtis {
		if err := config.RemoveRedisKey("Token:" + jti); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:" + username)
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func UpdateProfile(ctx context.Context, id int, input *UpdateProfileInput) (*User, error) {
	db := config.GetDB()

	if err := validateContactFields(input.Email, input.Phone, input.Mobile); err != nil {
		return nil, err
	}

	var user User
	if err := db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if input.Email != "" {
		email := strings.ToLower(strings.TrimSpace(input.Email))
		var count int64
		err := db.WithContext(ctx).Model(&User{}).
			Where("email = ? AND NOT id = ?", email, id).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, FieldErrors{"email": "email already in use"}
		}
		user.Email = &email
	} else {
		user.Email = nil
	}

	user.Name = strings.TrimSpace(input.Name)
	user.Company = strings.TrimSpace(input.Company)
	user.Phone = input.Phone
	user.Mobile = input.Mobile

	if err := db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes all of the user's live tokens.
func ChangePassword(ctx context.Context, id int, input *ChangePasswordInput) error {
	db := config.GetDB()

	var user User
	if err := db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	if err := utils.ComparePassword(user.Password, input.CurrentPassword); err != nil {
		return FieldErrors{"current_password": "current password is incorrect"}
	}

	hashedPassword, err := utils.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		return err
	}

	return RevokeAllTokens(user.Username)
}

func UpdateAvatar(ctx context.Context, id int, imageUrl string) (*User, error) {
	db := config.GetDB()

	var user User
	if err := db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&user).Update("image_url", imageUrl).Error; err != nil {
		return nil, err
	}
	user.ImageUrl = imageUrl
	user.PrepareGive()
	return &user, nil
}
