// Package prompt renders the instruction text sent to the completion model.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

const (
	unspecified = "未指定"
	unknown     = "未知"
)

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// Builder renders prompts. It is stateless apart from the rating range and
// safe for concurrent use.
type Builder struct {
	ratingMin int
	ratingMax int
}

// NewBuilder creates a Builder that asks for ratings in [ratingMin, ratingMax].
func NewBuilder(ratingMin, ratingMax int) *Builder {
	return &Builder{ratingMin: ratingMin, ratingMax: ratingMax}
}

// Build renders the prompt for profile. fctx may be nil; any of its fields
// may be absent and is then rendered as "未知".
func (b *Builder) Build(profile domain.UserProfile, fctx *domain.FortuneContext) string {
	var sb strings.Builder

	sb.WriteString("请为以下用户生成今日健康运势内容，要求：\n\n")

	sb.WriteString("用户信息：\n")
	fmt.Fprintf(&sb, "- 姓名：%s\n", profile.DisplayName)
	fmt.Fprintf(&sb, "- 性别：%s\n", genderText(profile.Gender))
	fmt.Fprintf(&sb, "- 出生日期：%s\n", profile.DateOfBirth.Format(time.DateOnly))
	fmt.Fprintf(&sb, "- 出生地点：%s\n", orDefault(profile.BirthPlace, unspecified))

	if fctx != nil {
		sb.WriteString("\n当前环境信息：\n")
		fmt.Fprintf(&sb, "- 当前时间：%s\n", timeText(fctx.Time))
		fmt.Fprintf(&sb, "- 所在位置：%s\n", locationText(fctx.Location))
		fmt.Fprintf(&sb, "- 天气情况：%s\n", weatherText(fctx.Weather))
		if fctx.Note != "" {
			fmt.Fprintf(&sb, "- 说明：%s\n", fctx.Note)
		}
	}

	sb.WriteString("\n请生成包含以下内容的运势：\n\n")
	fmt.Fprintf(&sb, "1. **整体运势评级**（%d-%d星，整数）\n", b.ratingMin, b.ratingMax)
	sb.WriteString("2. **健康运势**（详细分析，约100-150字）\n")
	sb.WriteString("3. **健康建议**（具体建议，约50-80字）\n")
	sb.WriteString("4. **财富运势**（简要分析，约30-50字）\n")
	sb.WriteString("5. **人际运势**（简要分析，约30-50字）\n")
	sb.WriteString("6. **幸运色**（格式：颜色名称 (Hex格式)，例如：豆沙绿 (#96B58D)）\n")
	sb.WriteString("7. **行动建议**（具体建议，约50-80字）\n")

	sb.WriteString("\n要求：\n")
	sb.WriteString("- 语言要温暖、关怀，适合年长用户阅读\n")
	sb.WriteString("- 内容要积极正面，体现东方文化特色\n")
	sb.WriteString("- 幸运色要使用传统中文颜色名称，并包含准确的Hex代码\n")
	sb.WriteString("- 健康建议要实用、温和\n")
	sb.WriteString("- 避免使用过于现代化或西化的表达\n")
	if fctx != nil {
		sb.WriteString("- 健康运势和健康建议必须结合当前天气的具体影响（气温、湿度、风力），例如气温高时提醒防暑补水，湿度大时提醒防潮祛湿\n")
		sb.WriteString("- 行动建议要结合所在位置和当前时间，给出适合今天的具体安排\n")
		sb.WriteString("- 如果某项环境信息为“未知”，请忽略该项，不要编造\n")
	}
	fmt.Fprintf(&sb, "- overallRating 必须是 %d 到 %d 之间的整数\n", b.ratingMin, b.ratingMax)

	sb.WriteString("\n请只返回JSON，不要包含其他文字，结构如下：\n")
	sb.WriteString(`{
  "overallRating": 4,
  "healthFortune": "详细的健康运势分析...",
  "healthSuggestion": "具体的健康建议...",
  "wealthFortune": "财富运势简要分析...",
  "interpersonalFortune": "人际运势简要分析...",
  "luckyColor": "颜色名称 (#Hex代码)",
  "actionSuggestion": "行动建议..."
}`)

	return sb.String()
}

func genderText(g *domain.Gender) string {
	if g == nil {
		return unspecified
	}
	switch *g {
	case domain.GenderMale:
		return "男"
	case domain.GenderFemale:
		return "女"
	}
	return unspecified
}

func orDefault(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return strings.TrimSpace(*s)
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return unknown
	}
	return fmt.Sprintf("%d年%d月%d日 %s %02d:%02d",
		t.Year(), int(t.Month()), t.Day(), weekdays[t.Weekday()], t.Hour(), t.Minute())
}

func locationText(l *domain.LocationInfo) string {
	if l == nil {
		return unknown
	}
	if d := l.Display(); d != "" {
		return d
	}
	return unknown
}

func weatherText(w *domain.WeatherSnapshot) string {
	if w == nil || w.Condition == "" {
		return unknown
	}
	return w.Display()
}
