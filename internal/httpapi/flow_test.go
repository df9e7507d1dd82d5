// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/auth/memory"
	"github.com/authkeep/authkeep/internal/httpapi"
	"github.com/authkeep/authkeep/internal/notify"
)

type mailbox struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (m *mailbox) Notify(_ context.Context, msg notify.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mailbox) last() notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	Expect(m.messages).NotTo(BeEmpty())
	return m.messages[len(m.messages)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

var _ = Describe("Account API", func() {
	var (
		server   *httptest.Server
		accounts *memory.AccountRepository
		inbox    *mailbox
		clk      *clock
	)

	post := func(path string, body map[string]string) (int, map[string]any) {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())

		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(raw)) //nolint:noctx // test server
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close() //nolint:errcheck // test cleanup

		Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
		var payload map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
		return resp.StatusCode, payload
	}

	BeforeEach(func() {
		clk = &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		accounts = memory.NewAccountRepository()
		inbox = &mailbox{}

		hasher, err := auth.NewArgon2idHasher(auth.Argon2Params{
			Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		})
		Expect(err).NotTo(HaveOccurred())
		codec, err := auth.NewJWTCodec(auth.TokenConfig{
			Secret: []byte("e2e-secret-e2e-secret-e2e-secret"),
		}, auth.WithTokenClock(clk.Now))
		Expect(err).NotTo(HaveOccurred())

		svc, err := auth.NewService(accounts, hasher, auth.NewRandomCodeGenerator(), codec, inbox,
			auth.WithClock(clk.Now))
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(httpapi.NewHandler(svc).Routes())
		DeferCleanup(server.Close)
	})

	It("runs the full account lifecycle for a@x.com", func() {
		By("registering")
		status, body := post("/register", map[string]string{"email": "a@x.com", "password": "p1"})
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(HaveKeyWithValue("message", "User created successfully"))
		Expect(body).To(HaveKeyWithValue("user", HaveKeyWithValue("email", "a@x.com")))

		mail := inbox.last()
		Expect(mail.To).To(Equal("a@x.com"))
		Expect(mail.Subject).To(Equal("Email verification"))
		code := sixDigits.FindString(mail.HTML)
		Expect(code).NotTo(BeEmpty())

		By("rejecting a second registration")
		status, body = post("/register", map[string]string{"email": "a@x.com", "password": "other"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "User already exists"))

		By("logging in")
		status, body = post("/login", map[string]string{"email": "a@x.com", "password": "p1"})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "Login successful"))
		Expect(body["token"]).To(BeAssignableToTypeOf(""))
		Expect(body["token"]).NotTo(BeEmpty())

		status, body = post("/login", map[string]string{"email": "a@x.com", "password": "wrong"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "Invalid credentials"))

		By("verifying the email once")
		wrong := "100000"
		if code == wrong {
			wrong = "100001"
		}
		status, body = post("/verify", map[string]string{"email": "a@x.com", "verificationCode": wrong})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "Invalid verification code"))

		status, body = post("/verify", map[string]string{"email": "a@x.com", "verificationCode": code})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "User verified successfully"))

		status, body = post("/verify", map[string]string{"email": "a@x.com", "verificationCode": code})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "User already verified"))

		By("resetting the password")
		status, body = post("/forgot-password", map[string]string{"email": "a@x.com"})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "Password reset link sent"))
		resetToken, ok := body["token"].(string)
		Expect(ok).To(BeTrue())

		status, body = post("/reset-password", map[string]string{"token": resetToken, "newPassword": "p2"})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "Password reset successfully"))

		status, _ = post("/login", map[string]string{"email": "a@x.com", "password": "p1"})
		Expect(status).To(Equal(http.StatusBadRequest))

		status, _ = post("/login", map[string]string{"email": "a@x.com", "password": "p2"})
		Expect(status).To(Equal(http.StatusOK))
	})

	It("reports unknown accounts", func() {
		status, body := post("/login", map[string]string{"email": "nobody@x.com", "password": "p1"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "User doesn't exist"))

		status, body = post("/forgot-password", map[string]string{"email": "nobody@x.com"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "User doesn't exist"))
	})

	It("requires fields", func() {
		status, body := post("/register", map[string]string{"email": "a@x.com"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "Email and password are required"))

		status, body = post("/reset-password", map[string]string{"token": "t"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("message", "Token and new password are required"))
	})

	Context("with an issued reset token", func() {
		var (
			resetToken   string
			originalHash string
		)

		BeforeEach(func() {
			status, _ := post("/register", map[string]string{"email": "a@x.com", "password": "p1"})
			Expect(status).To(Equal(http.StatusCreated))

			account, err := accounts.GetByEmail(context.Background(), "a@x.com")
			Expect(err).NotTo(HaveOccurred())
			originalHash = account.PasswordHash

			var body map[string]any
			status, body = post("/forgot-password", map[string]string{"email": "a@x.com"})
			Expect(status).To(Equal(http.StatusOK))
			resetToken = body["token"].(string)
		})

		expectUnchanged := func() {
			account, err := accounts.GetByEmail(context.Background(), "a@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(account.PasswordHash).To(Equal(originalHash))
		}

		It("rejects it after expiry", func() {
			clk.Advance(auth.DefaultResetTokenTTL)

			status, body := post("/reset-password", map[string]string{"token": resetToken, "newPassword": "p2"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("message", "Invalid token"))
			expectUnchanged()
		})

		It("accepts it just before expiry", func() {
			clk.Advance(auth.DefaultResetTokenTTL - time.Second)

			status, _ := post("/reset-password", map[string]string{"token": resetToken, "newPassword": "p2"})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("rejects a forged token", func() {
			status, body := post("/reset-password", map[string]string{"token": resetToken + "x", "newPassword": "p2"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("message", "Invalid token"))
			expectUnchanged()
		})

		It("rejects a session token", func() {
			_, body := post("/login", map[string]string{"email": "a@x.com", "password": "p1"})
			sessionToken := body["token"].(string)

			status, body := post("/reset-password", map[string]string{"token": sessionToken, "newPassword": "p2"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("message", "Invalid token"))
			expectUnchanged()
		})
	})
})
