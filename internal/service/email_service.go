package service

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"

	"github.com/newbialywhodis/barcapl/config"
	"github.com/newbialywhodis/barcapl/internal/util"
)

// EmailService 负责发送注册验证邮件
type EmailService struct {
	smtpHost  string
	smtpPort  int
	username  string
	password  string
	jwtSecret string
}

// NewEmailService 创建一个新的 EmailService 实例
func NewEmailService() *EmailService {
	return &EmailService{
		smtpHost:  config.AppConfig.SMTPHost,
		smtpPort:  config.AppConfig.SMTPPort,
		username:  config.AppConfig.SMTPUsername,
		password:  config.AppConfig.SMTPPassword,
		jwtSecret: config.AppConfig.JWTSecret,
	}
}

// SendVerificationEmail 发送邮箱验证邮件，邮件异步发出
func (s *EmailService) SendVerificationEmail(email, nick string) error {
	token, err := s.generateEmailVerificationToken(email)
	if err != nil {
		return fmt.Errorf("生成验证令牌失败: %w", err)
	}

	verificationLink := fmt.Sprintf("%s/verify-email?token=%s", config.AppConfig.FrontendURL, token)

	subject := "验证您的邮箱"
	body := fmt.Sprintf("您好 %s，\n\n请点击以下链接验证您的邮箱：\n%s\n\n此链接将在24小时后过期。", nick, verificationLink)

	s.sendEmailAsync(email, subject, body)
	return nil
}

// VerifyEmailToken 校验验证令牌并返回其中的邮箱
func (s *EmailService) VerifyEmailToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if email, ok := claims["email"].(string); ok && email != "" {
			return email, nil
		}
	}
	return "", errors.New("无效的验证令牌")
}

func (s *EmailService) generateEmailVerificationToken(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *EmailService) sendEmailAsync(to, subject, body string) {
	go func() {
		if err := s.sendEmail(to, subject, body); err != nil {
			util.Logger.Error("异步发送邮件失败", zap.Error(err), zap.String("to", to))
		}
	}()
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.username)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(s.smtpHost, s.smtpPort, s.username, s.password)
	d.Timeout = 20 * time.Second
	d.TLSConfig = &tls.Config{ServerName: s.smtpHost}

	return d.DialAndSend(m)
}
