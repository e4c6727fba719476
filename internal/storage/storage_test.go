package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestCreatedOrSkipped(t *testing.T) {
	cases := []struct {
		name         string
		rowsAffected int64
		err          error
		wantCreated  bool
		wantErr      bool
	}{
		{"created", 1, nil, true, false},
		{"already exists", 0, nil, false, false},
		// 并发写入输掉唯一索引竞争时按"已存在"处理，不是错误
		{"lost unique race", 0, gorm.ErrDuplicatedKey, false, false},
		{"wrapped duplicate", 0, fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), false, false},
		{"real failure", 0, errors.New("connection lost"), false, true},
	}
	for _, c := range cases {
		created, err := createdOrSkipped(c.rowsAffected, c.err)
		if created != c.wantCreated {
			t.Fatalf("%s: created = %v, want %v", c.name, created, c.wantCreated)
		}
		if (err != nil) != c.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestBriefingDateOfUsesEast8(t *testing.T) {
	// UTC 2026-08-28 17:00 已是东八区 2026-08-29 01:00
	utc := time.Date(2026, 8, 28, 17, 0, 0, 0, time.UTC)
	if got := BriefingDateOf(utc); got != "2026-08-29" {
		t.Fatalf("BriefingDateOf = %q, want %q", got, "2026-08-29")
	}

	// UTC 正午仍在同一天
	noon := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if got := BriefingDateOf(noon); got != "2026-08-28" {
		t.Fatalf("BriefingDateOf = %q, want %q", got, "2026-08-28")
	}
}

func TestTruncateRunesHandlesChinese(t *testing.T) {
	s := "你好，世界，这是一个很长的中文句子，用来测试截断逻辑。"
	out := truncateRunes(s, 5)
	if len([]rune(out)) != 5 {
		t.Fatalf("truncateRunes length = %d, want 5: %q", len([]rune(out)), out)
	}

	// limit 大于长度时不应截断
	full := truncateRunes("短文本", 10)
	if full != "短文本" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}

	if got := truncateRunes("anything", 0); got != "" {
		t.Fatalf("truncateRunes with limit 0 = %q, want empty", got)
	}
}

func TestToValidUTF8ReplacesInvalidBytes(t *testing.T) {
	valid := "正常文本 normal"
	if got := toValidUTF8(valid); got != valid {
		t.Fatalf("toValidUTF8 changed valid input: %q", got)
	}

	invalid := string([]byte{0xff, 0xfe, 'o', 'k'})
	got := toValidUTF8(invalid)
	if got == invalid {
		t.Fatal("toValidUTF8 should replace invalid bytes")
	}
	if got == "" {
		t.Fatal("toValidUTF8 should keep valid suffix")
	}
}
