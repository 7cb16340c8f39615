package intent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Intent
	}{
		{
			name: "all fields",
			json: `{"from":"Chicago","to":"New York","days":4,"people":2,"budget":1500.5,"prefs":["museums","food"]}`,
			want: Intent{
				From:   strPtr("Chicago"),
				To:     strPtr("New York"),
				Days:   intPtr(4),
				People: intPtr(2),
				Budget: floatPtr(1500.5),
				Prefs:  []string{"museums", "food"},
			},
		},
		{
			name: "nulls are absent",
			json: `{"from":null,"to":null,"days":null,"people":null,"budget":null,"prefs":null}`,
			want: Intent{},
		},
		{
			name: "omitted fields are absent",
			json: `{}`,
			want: Intent{},
		},
		{
			name: "numeric strings are not coerced",
			json: `{"days":"4","people":"2","budget":"3000"}`,
			want: Intent{},
		},
		{
			name: "non-string places are absent",
			json: `{"from":12,"to":{"city":"Paris"}}`,
			want: Intent{},
		},
		{
			name: "blank places are absent",
			json: `{"from":"   ","to":""}`,
			want: Intent{},
		},
		{
			name: "non-positive and fractional counts are absent",
			json: `{"days":0,"people":2.5,"budget":-10}`,
			want: Intent{},
		},
		{
			name: "prefs keep only non-blank strings",
			json: `{"prefs":["nightlife",3,"",null," outdoors "]}`,
			want: Intent{Prefs: []string{"nightlife", "outdoors"}},
		},
		{
			name: "prefs of the wrong type are absent",
			json: `{"prefs":"museums"}`,
			want: Intent{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Intent
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntent_UnmarshalJSON_RejectsNonObject(t *testing.T) {
	var got Intent
	assert.Error(t, json.Unmarshal([]byte(`["not","an","object"]`), &got))
}

func TestIntent_MarshalOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(Intent{To: strPtr("Lisbon"), Days: intPtr(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"Lisbon","days":3}`, string(data))
}

func TestIntent_DayCount(t *testing.T) {
	assert.Equal(t, 1, Intent{}.DayCount())
	assert.Equal(t, 1, Intent{Days: intPtr(0)}.DayCount())
	assert.Equal(t, 1, Intent{Days: intPtr(-3)}.DayCount())
	assert.Equal(t, 5, Intent{Days: intPtr(5)}.DayCount())
}

func TestIntent_Budgets(t *testing.T) {
	in := Intent{Days: intPtr(4), People: intPtr(2), Budget: floatPtr(2000)}

	daily, ok := in.DailyBudget()
	require.True(t, ok)
	assert.InDelta(t, 500.0, daily, 0.001)

	perPerson, ok := in.PerPersonBudget()
	require.True(t, ok)
	assert.InDelta(t, 1000.0, perPerson, 0.001)

	_, ok = Intent{Budget: floatPtr(2000)}.DailyBudget()
	assert.False(t, ok)
	_, ok = Intent{People: intPtr(2)}.PerPersonBudget()
	assert.False(t, ok)
}

func TestIntent_Clone(t *testing.T) {
	orig := Intent{From: strPtr("Oslo"), Days: intPtr(2), Prefs: []string{"fjords"}}
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	*cp.From = "Bergen"
	cp.Prefs[0] = "food"
	assert.Equal(t, "Oslo", *orig.From)
	assert.Equal(t, "fjords", orig.Prefs[0])
}

func TestIntent_IsEmpty(t *testing.T) {
	assert.True(t, Intent{}.IsEmpty())
	assert.False(t, Intent{People: intPtr(1)}.IsEmpty())
}
