package domain

import (
	"fmt"
	"strings"
)

const (
	ProfileFullName  = "full"
	ProfileBasicName = "basic"
)

// DefaultMinRuntime 是运行时长过滤阈值（分钟）：严格小于该值的影片被排除。
const DefaultMinRuntime = 60

// Profile 描述一条管线的可变部分：导出列、分级国家、时长下限与文本修复开关。
// 两个内置变体共用同一条管线，差异只体现在这里。
type Profile struct {
	Name       string
	Columns    []string
	Countries  []string
	MinRuntime int
	RepairText bool
}

// ProfileFull 返回富化版本的预设。
func ProfileFull() Profile {
	return Profile{
		Name:       ProfileFullName,
		Columns:    append([]string(nil), FullColumns...),
		Countries:  []string{"US", "GB", "CA"},
		MinRuntime: DefaultMinRuntime,
		RepairText: true,
	}
}

// ProfileBasic 返回精简版本的预设。
func ProfileBasic() Profile {
	return Profile{
		Name:       ProfileBasicName,
		Columns:    append([]string(nil), BasicColumns...),
		Countries:  []string{"US"},
		MinRuntime: DefaultMinRuntime,
		RepairText: false,
	}
}

// LookupProfile 按名字返回内置预设（大小写不敏感）。
func LookupProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileFullName, "":
		return ProfileFull(), nil
	case ProfileBasicName:
		return ProfileBasic(), nil
	default:
		return Profile{}, fmt.Errorf("profile 只能是 full 或 basic，实际是 %q", name)
	}
}
