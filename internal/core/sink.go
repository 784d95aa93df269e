package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/PSPriceScout/internal/models"
)

// Sink 商品记录输出
// Emit 会被多个worker并发调用
type Sink interface {
	Emit(product *models.Product) error
}

// JSONLinesSink 每行一个JSON商品记录
type JSONLinesSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closer  io.Closer
	count   int
}

// NewJSONLinesSink 写入任意io.Writer
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return &JSONLinesSink{encoder: encoder}
}

// OpenJSONLinesSink 创建输出文件, path为"-"时写标准输出
func OpenJSONLinesSink(path string) (*JSONLinesSink, error) {
	if path == "-" {
		return NewJSONLinesSink(os.Stdout), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建输出文件失败: %w", err)
	}

	sink := NewJSONLinesSink(file)
	sink.closer = file
	return sink, nil
}

// Emit 写入一条记录
func (s *JSONLinesSink) Emit(product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.encoder.Encode(product); err != nil {
		return fmt.Errorf("写入商品记录失败 [%s]: %w", product.SourceURL, err)
	}
	s.count++
	return nil
}

// Count 已写入的记录数
func (s *JSONLinesSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close 关闭输出文件
func (s *JSONLinesSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
