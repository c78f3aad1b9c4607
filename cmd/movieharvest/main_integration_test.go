package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/John-Robertt/movieharvest/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/日志必须走 stderr）。
	r := chi.NewRouter()
	r.Get("/3/discover/movie", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("primary_release_year") != "2021" {
			_, _ = w.Write([]byte(`{"page":1,"results":[],"total_pages":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":7,"title":"Short"},{"id":8,"title":"Long"}],"total_pages":1}`))
	})
	r.Get("/3/movie/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") == "7" {
			_, _ = w.Write([]byte(`{"id":7,"title":"Short","runtime":12,"release_date":"2021-01-01"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":8,"title":"Long","runtime":95,"release_date":"2021-03-04","credits":{"crew":[{"name":"D","job":"Director"}]}}`))
	})
	r.Get("/3/movie/{id}/release_dates", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"iso_3166_1":"US","release_dates":[{"certification":"R"}]}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	root := t.TempDir()
	cfgPath := filepath.Join(root, "movieharvest.json")
	cfg := `{"base_url":"` + srv.URL + `/3","year_delay":"0s","requests_per_second":0}`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	out := filepath.Join(root, "movies.csv")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/movieharvest", "run",
		"--from", "2020", "--to=2021", "--out", out, "--config", cfgPath,
	)
	cmd.Dir = repoRoot
	cmd.Env = append(os.Environ(), "API_KEY=integration-key")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.Added != 1 || rr.Summary.Skipped != 1 || rr.Summary.Years != 2 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if strings.Contains(stdout.String(), "Fetching movies") || strings.Contains(stdout.String(), "integration-key") {
		t.Fatalf("stdout 不应包含进度或凭据：%q", stdout.String())
	}
	if strings.Contains(stderr.String(), "integration-key") {
		t.Fatalf("stderr 不应泄露凭据：%q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "完成：years=2") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("打开输出失败：%v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("读取 CSV 失败：%v", err)
	}
	if len(rows) != 2 || rows[1][0] != "Long" {
		t.Fatalf("CSV 内容不符合预期：%v", rows)
	}
}

func TestCLI_MissingConfigReportsCode(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/movieharvest", "run", "--config", filepath.Join(t.TempDir(), "nope.json"))
	cmd.Dir = repoRoot
	cmd.Env = append(os.Environ(), "API_KEY=k")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err == nil {
		t.Fatalf("配置文件不存在时应以非零退出码结束")
	}

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q\nstderr=%s", err, stdout.String(), stderr.String())
	}
	if rr.ErrorCode != domain.ErrCodeConfigNotFound {
		t.Fatalf("error_code 不符合预期：%q", rr.ErrorCode)
	}
}
