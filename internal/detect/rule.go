package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/casenetai/anonymizer/internal/logger"
	"go.uber.org/zap"
)

// Per-pattern confidence. High-precision numeric patterns sit near 1.0;
// keyword-driven facility and name heuristics sit lower.
const (
	residentIDConfidence = 1.0
	phoneConfidence      = 0.95
	emailConfidence      = 0.95
	addressConfidence    = 0.9
	facilityConfidence   = 0.85
	nameConfidence       = 0.8
)

// koreanSurnames covers the most common Korean family names, used to anchor
// name detection
var koreanSurnames = []string{
	"김", "이", "박", "최", "정", "강", "조", "윤", "장", "임",
	"한", "오", "서", "신", "권", "황", "안", "송", "류", "전",
	"홍", "고", "문", "양", "손", "배", "백", "허", "남", "심",
	"노", "하", "곽", "성", "차", "주", "우", "구", "나", "민",
	"진", "유", "지", "엄", "채", "원", "천", "방", "공", "현",
	"변", "염", "석", "선", "설", "마", "길", "연", "위", "표",
	"명", "기", "반", "라", "왕", "금", "옥", "육", "인", "맹",
	"제", "모", "탁", "국", "어", "은", "편", "용", "경", "봉",
}

// nameContextKeywords follow a name in text and mark it as an actual person
// mention rather than a common noun
var nameContextKeywords = []string{
	"씨", "님", "선생님", "선생",
	"어머니", "아버지", "할머니", "할아버지",
	"위원장", "팀장", "상담원", "과장", "부장", "차장", "실장",
	"교수", "박사", "원장", "센터장", "국장",
}

// excludeNameWords are common nouns that happen to start with a surname
// character and must never be tagged as names
var excludeNameWords = map[string]bool{
	"김치": true, "이상": true, "박사": true, "최고": true, "정부": true,
	"정보": true, "정리": true, "정도": true, "정신": true, "정책": true,
	"기관": true, "기준": true, "기록": true, "기간": true, "기타": true,
	"상황": true, "상태": true, "상담": true, "관계": true, "관리": true,
	"진행": true, "진술": true, "진단": true, "성명": true, "성별": true,
	"위원": true, "위험": true, "위치": true, "안전": true, "안내": true,
	"전문": true, "전체": true, "전달": true, "최종": true, "최근": true,
	"한국": true, "한계": true, "신고": true, "신청": true, "신체": true,
	"고령": true, "고통": true, "조사": true, "조치": true, "의료": true,
	"의견": true, "의심": true, "행위": true, "행정": true, "방문": true,
	"방치": true, "문의": true, "문서": true, "서비스": true, "서울": true,
	"주소": true, "주민": true, "원인": true, "현장": true, "현재": true,
	"변화": true, "경우": true, "가능": true, "가족": true, "가정": true,
	"소속": true, "대상": true, "대응": true, "본인": true, "노인": true,
	"내용": true, "금액": true, "명확": true, "반응": true, "제공": true,
	"제출": true, "모니터링": true, "어르신": true, "어려움": true,
	"경찰": true, "복지": true, "피해": true, "인정": true, "인물": true,
	"사례": true, "판정": true, "회의": true, "조회": true,
	"위원장": true, "피해자": true, "신고자": true, "행위자": true,
	"보호자": true, "상담원": true, "담당자": true, "팀장": true,
	"과장": true, "부장": true, "대표": true, "국장": true, "차장": true,
	"실장": true,
}

// facilityKeywords mark a token as a care/institution name when suffixed to
// a specific proper name
var facilityKeywords = []string{
	"요양원", "요양병원", "복지관", "센터", "의원", "병원", "클리닉",
	"재가", "주간보호", "방문요양", "단기보호", "공동생활가정",
	"양로원", "실버타운", "경로당",
	"어린이집", "유치원", "학교", "학원", "협회", "재단", "법인",
}

// commonFacilities are generic institution categories, not identifying
// facility names, and are preserved as-is
var commonFacilities = map[string]bool{
	"노인보호전문기관": true,
	"아동보호전문기관": true,
	"장애인복지관":   true,
	"가정폭력상담소":  true,
	"성폭력상담소":   true,
	"정신건강복지센터": true,
	"지역사회복지관":  true,
	"종합사회복지관":  true,
	"보건소":      true,
}

// RuleDetector is the deterministic, offline regex/keyword scanner. It is
// pure CPU, never suspends, and is defined as always available.
type RuleDetector struct {
	residentIDPatterns []*regexp.Regexp
	phonePatterns      []*regexp.Regexp
	emailPattern       *regexp.Regexp
	addressPatterns    []*regexp.Regexp
	facilityPatterns   []*regexp.Regexp
	namePatterns       []*regexp.Regexp
	logger             *logger.Logger
}

// NewRuleDetector compiles all detection patterns once
func NewRuleDetector(log *logger.Logger) *RuleDetector {
	surnameAlt := strings.Join(koreanSurnames, "|")

	namePatterns := make([]*regexp.Regexp, 0, len(nameContextKeywords))
	for _, keyword := range nameContextKeywords {
		namePatterns = append(namePatterns,
			regexp.MustCompile(`((?:`+surnameAlt+`)[가-힣]{2,3})\s*`+keyword))
	}

	facilityPatterns := make([]*regexp.Regexp, 0, len(facilityKeywords))
	for _, keyword := range facilityKeywords {
		facilityPatterns = append(facilityPatterns,
			regexp.MustCompile(`[가-힣a-zA-Z0-9]{2,}`+keyword))
	}

	return &RuleDetector{
		residentIDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\d{6}[-\s]?[1-4]\d{6}`),
			regexp.MustCompile(`\d{6}[-\s]?\d\*{6}`),
		},
		phonePatterns: []*regexp.Regexp{
			regexp.MustCompile(`01[0-9][-\s]?\d{3,4}[-\s]?\d{4}`),
			regexp.MustCompile(`\d{2,3}[-\s]?\d{3,4}[-\s]?\d{4}`),
		},
		emailPattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		addressPatterns: []*regexp.Regexp{
			regexp.MustCompile(`[가-힣]+[시도]\s+[가-힣]+[시군구]\s+[가-힣]+[읍면동로길]\s+\d+[-\d]*`),
			regexp.MustCompile(`[가-힣]+[시도]\s+[가-힣]+[시군구]\s+[가-힣]+[읍면동리]\s+\d+[-\d]*`),
		},
		facilityPatterns: facilityPatterns,
		namePatterns:     namePatterns,
		logger:           log,
	}
}

// Source identifies this backend
func (d *RuleDetector) Source() anonymizer.Source {
	return anonymizer.SourceRule
}

// Detect scans text with every pattern family. Numeric patterns run first
// and claim their spans so a phone pattern cannot re-match inside a
// resident registration number.
func (d *RuleDetector) Detect(ctx context.Context, text string, opts anonymizer.DetectOptions) (anonymizer.Detection, error) {
	var entities []anonymizer.Entity
	var claimed [][2]int

	match := func(patterns []*regexp.Regexp, entityType anonymizer.EntityType, confidence float64, accept func(string) bool) {
		for _, pattern := range patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				if overlapsAny(claimed, loc[0], loc[1]) {
					continue
				}
				value := text[loc[0]:loc[1]]
				if accept != nil && !accept(value) {
					continue
				}
				claimed = append(claimed, [2]int{loc[0], loc[1]})
				entities = append(entities, anonymizer.Entity{
					Original:   value,
					Type:       entityType,
					Confidence: confidence,
					Source:     anonymizer.SourceRule,
					Span:       &anonymizer.Span{Start: loc[0], End: loc[1]},
				})
			}
		}
	}

	match(d.residentIDPatterns, anonymizer.EntityIdentifier, residentIDConfidence, nil)
	match(d.phonePatterns, anonymizer.EntityPhone, phoneConfidence, validPhoneDigits)
	match([]*regexp.Regexp{d.emailPattern}, anonymizer.EntityEmail, emailConfidence, nil)
	match(d.addressPatterns, anonymizer.EntityAddress, addressConfidence, nil)
	match(d.facilityPatterns, anonymizer.EntityFacility, facilityConfidence, func(v string) bool {
		return !commonFacilities[v]
	})

	entities = append(entities, d.detectNames(text)...)

	d.logger.Debug("Rule detection complete", zap.Int("entities", len(entities)))

	return anonymizer.Detection{
		Entities: filterByConfidence(entities, opts.MinConfidence),
	}, nil
}

// detectNames finds surname-anchored person names confirmed by a trailing
// context keyword, then emits one entity per unique name. Replacement is
// whole-document, so every other mention of a confirmed name gets the same
// tag even without its own keyword.
func (d *RuleDetector) detectNames(text string) []anonymizer.Entity {
	seen := make(map[string]bool)
	var entities []anonymizer.Entity

	for _, pattern := range d.namePatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			name := text[loc[2]:loc[3]]
			if seen[name] || excludeNameWords[name] {
				continue
			}
			seen[name] = true
			entities = append(entities, anonymizer.Entity{
				Original:   name,
				Type:       anonymizer.EntityName,
				Confidence: nameConfidence,
				Source:     anonymizer.SourceRule,
				Span:       &anonymizer.Span{Start: loc[2], End: loc[3]},
			})
		}
	}

	return entities
}

// validPhoneDigits checks a phone match carries a plausible digit count
func validPhoneDigits(value string) bool {
	digits := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 8 && digits <= 11
}

// overlapsAny reports whether [start,end) intersects any claimed span
func overlapsAny(claimed [][2]int, start, end int) bool {
	for _, span := range claimed {
		if start < span[1] && end > span[0] {
			return true
		}
	}
	return false
}
