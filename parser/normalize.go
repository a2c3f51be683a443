package parser

import (
	"strconv"
	"strings"
)

// NormalizeQuotaStatus resolves the quota status of a record for the merged
// dataset. The portal sometimes renders "Doldu#" or leaves the status empty,
// in which case the filled/total quota figures decide it.
func NormalizeQuotaStatus(status string, maxRank, totalQuota, filledQuota []string) string {
	if status != "" && strings.HasSuffix(status, "#") {
		return strings.TrimRight(status, "#")
	}
	if status != "" {
		return status
	}
	if len(maxRank) > 0 && maxRank[0] == "Dolmadı" {
		return "Dolmadı"
	}
	if len(totalQuota) == 0 || len(filledQuota) == 0 {
		return status
	}

	total, err := strconv.Atoi(firstFigure(totalQuota[0]))
	if err != nil {
		return "Doldu"
	}
	if strings.HasPrefix(filledQuota[0], "Doldu") {
		return "Doldu"
	}
	filled, err := strconv.Atoi(firstFigure(filledQuota[0]))
	if err != nil {
		return "Doldu"
	}
	if filled >= total {
		return "Doldu"
	}
	return "Dolmadı"
}

// firstFigure returns the leading figure of a composite quota value such as
// "85+4+1+1".
func firstFigure(v string) string {
	if i := strings.Index(v, "+"); i >= 0 {
		return v[:i]
	}
	return v
}

// NormalizeAttributes splits attribute tags the row parser occasionally glues
// together, e.g. "İngilizce)KKTC Uyruklu (4 Yıllık" into three tags.
func NormalizeAttributes(attrs []string) []string {
	var normalized []string
	for _, attr := range attrs {
		if !strings.Contains(attr, ")") || !strings.Contains(attr, "(") {
			normalized = append(normalized, attr)
			continue
		}

		head, rest, _ := strings.Cut(attr, ")")
		if head = strings.TrimSpace(head); head != "" {
			normalized = append(normalized, head)
		}

		middle, tail, found := strings.Cut(rest, "(")
		if middle = strings.TrimSpace(middle); middle != "" {
			normalized = append(normalized, middle)
		}
		if found {
			tail = strings.TrimSpace(strings.ReplaceAll(tail, ")", ""))
			if tail != "" {
				normalized = append(normalized, tail)
			}
		}
	}
	return normalized
}
