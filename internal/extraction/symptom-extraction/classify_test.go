package symptomextraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTCM(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want TCMClassification
	}{
		{
			name: "deficiency pattern",
			in:   "乏力",
			want: TCMClassification{
				PatternAssociations: []string{"气虚"},
				OrganSystems:        []string{"脾", "肺"},
				PathogenicFactors:   []string{},
				Nature:              "虚",
			},
		},
		{
			name: "pattern plus characteristic character",
			in:   "胸痛",
			want: TCMClassification{
				PatternAssociations: []string{"血瘀"},
				OrganSystems:        []string{"肝", "心"},
				PathogenicFactors:   []string{"血瘀", "气滞"},
				Nature:              "实",
			},
		},
		{
			name: "alias resolves first",
			in:   "怕冷",
			want: TCMClassification{
				PatternAssociations: []string{"阳虚"},
				OrganSystems:        []string{"肾", "脾"},
				PathogenicFactors:   []string{"阳虚", "寒"},
				Nature:              "虚寒",
			},
		},
		{
			name: "unknown symptom",
			in:   "打喷嚏",
			want: TCMClassification{
				PatternAssociations: []string{},
				OrganSystems:        []string{},
				PathogenicFactors:   []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTCM(tt.in))
		})
	}
}
