// 包 idgen 提供业务 ID 生成：雪花 ID、引用号与随机数字码
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snowflake 雪花算法 ID 生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	sequence  int64
	nodeID    int64
}

// NewSnowflake 创建雪花 ID 生成器
func NewSnowflake(nodeID int64) *Snowflake {
	return &Snowflake{
		nodeID: nodeID & 0x3FF, // 10 bits
	}
}

// Generate 生成雪花 ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & 0xFFF // 12 bits
		if s.sequence == 0 {
			// 等待下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	// timestamp(41 bits) + nodeID(10 bits) + sequence(12 bits)
	return (now << 22) | (s.nodeID << 12) | s.sequence
}

var defaultNode = NewSnowflake(1)

// NextID 使用默认节点生成雪花 ID
func NextID() int64 {
	return defaultNode.Generate()
}

// BizID 生成带前缀的业务主键，如 ACC-7264...、TXN-7264...
func BizID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, NextID())
}

// NewReference 生成全局唯一引用号（高熵随机 token）
func NewReference() string {
	return uuid.New().String()
}

// RandomDigits 生成指定位数的随机数字码（crypto/rand），用于 OTP
func RandomDigits(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
