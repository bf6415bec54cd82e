// Command client drives a running server through register, login, upload,
// list and delete, and fails on the first unexpected response.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type client struct {
	base  string
	http  *http.Client
	token string
}

func (c *client) do(method, path string, body io.Reader, contentType string, want ...int) ([]byte, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	for _, code := range want {
		if resp.StatusCode == code {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%s %s: status %d, body %s", method, path, resp.StatusCode, data)
}

func (c *client) postJSON(path string, in any, want ...int) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return c.do(http.MethodPost, path, bytes.NewReader(body), "application/json", want...)
}

func (c *client) upload(files map[string][]byte) ([]byte, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return c.do(http.MethodPost, "/user/upload", body, mw.FormDataContentType(), http.StatusCreated)
}

func smoke(c *client, out io.Writer) error {
	suffix := uuid.NewString()[:8]
	username := "smoke_" + suffix
	password := "pw-" + suffix

	if _, err := c.postJSON("/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	}, http.StatusCreated); err != nil {
		return err
	}
	fmt.Fprintln(out, "registered", username)

	data, err := c.postJSON("/auth/login", map[string]string{"username": username, "password": password}, http.StatusOK)
	if err != nil {
		return err
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		return fmt.Errorf("decode login: %w", err)
	}
	c.token = login.Token
	fmt.Fprintln(out, "logged in")

	if _, err := c.upload(map[string][]byte{
		"report.pdf": []byte("%PDF-1.7 smoke"),
		"notes.txt":  []byte("hello"),
	}); err != nil {
		return err
	}
	fmt.Fprintln(out, "uploaded 2 files")

	data, err = c.do(http.MethodGet, "/user/files?file_extension=pdf", nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	var listed []struct {
		Filename  string  `json:"filename"`
		AccessURL *string `json:"access_url"`
	}
	if err := json.Unmarshal(data, &listed); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}
	if len(listed) != 1 || listed[0].Filename != "report.pdf" {
		return fmt.Errorf("unexpected pdf listing: %s", data)
	}
	fmt.Fprintln(out, "listed report.pdf")

	if _, err := c.do(http.MethodDelete, "/user/files", nil, "", http.StatusOK); err != nil {
		return err
	}
	data, err = c.do(http.MethodGet, "/user/files", nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	if string(bytes.TrimSpace(data)) != "[]" {
		return fmt.Errorf("files left after delete: %s", data)
	}
	fmt.Fprintln(out, "deleted all files")

	if _, err := c.do(http.MethodDelete, "/user", nil, "", http.StatusOK); err != nil {
		return err
	}
	if _, err := c.do(http.MethodGet, "/user/files", nil, "", http.StatusUnauthorized); err != nil {
		return err
	}
	fmt.Fprintln(out, "deleted account, session revoked")
	return nil
}

func main() {
	var (
		addr    string
		timeout time.Duration
	)
	root := &cobra.Command{
		Use:          "client",
		Short:        "End-to-end smoke test against a running file sharing server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := &client{base: addr, http: &http.Client{Timeout: timeout}}
			return smoke(c, cmd.OutOrStdout())
		},
	}
	root.Flags().StringVar(&addr, "addr", "http://localhost:8000", "server base URL")
	root.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
