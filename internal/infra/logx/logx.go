package logx

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 描述日志输出：级别、控制台目标与可选的滚动日志文件。
type Options struct {
	Level string
	// Console 为 nil 时输出到 stderr（stdout 保留给 JSON 报告）。
	Console io.Writer
	// File 非空时额外写入滚动日志文件。
	File        string
	FileMaxSize int
	FileBackups int
	FileMaxAge  int
	Compress    bool
}

// New 构造 logger；文件日志使用 lumberjack 按大小滚动。
// 返回的 closer 用于在进程退出前关闭日志文件。
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	level := logrus.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		lv, err := logrus.ParseLevel(s)
		if err != nil {
			return nil, nil, err
		}
		level = lv
	}
	l.SetLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	if strings.TrimSpace(opts.File) == "" {
		l.SetOutput(console)
		return l, nopCloser{}, nil
	}

	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.FileMaxSize, 10), // megabytes
		MaxBackups: orDefault(opts.FileBackups, 3),
		MaxAge:     orDefault(opts.FileMaxAge, 28), // days
		Compress:   opts.Compress,
	}
	l.SetOutput(io.MultiWriter(console, lj))
	return l, lj, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
