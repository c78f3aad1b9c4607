// Package csvsink 把记录写成单个 CSV 文件（表头 + 每条记录一行），原子替换已有文件。
package csvsink

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/John-Robertt/movieharvest/internal/domain"
	"github.com/John-Robertt/movieharvest/internal/infra/fsx"
)

// Write 写出 path；columns 决定表头与列顺序。写出失败时不会留下半截文件。
func Write(path string, columns []string, records []domain.MovieRecord) error {
	if len(columns) == 0 {
		return errors.New("columns 不能为空")
	}
	return fsx.WriteFileAtomicFunc(path, func(w io.Writer) error {
		return Encode(w, columns, records)
	})
}

// Encode 把 CSV 写入 w（不做任何文件操作）。
func Encode(w io.Writer, columns []string, records []domain.MovieRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(records[i].Values(columns)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
