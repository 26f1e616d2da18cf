package vquest

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Parameters are V-QUEST request fields. Values are string, bool, int or nil;
// nil values are left out of the request.
type Parameters map[string]any

// detailedKeys are carried over from a full request into the detailed one.
var detailedKeys = []string{
	"species",
	"receptorOrLocusType",
	"sequences",
	"IMGTrefdirSet",
	"IMGTrefdirAlleles",
	"V_REGIONsearchIndel",
	"nbD_GENE",
	"nbVmut",
	"nbDmut",
	"nbJmut",
	"scfv",
	"cllSubsetSearch",
	"inputType",
	"fileSequences",
}

// detailedDisplayFlags are switched off so the text output carries only the
// result summary and subset sections.
var detailedDisplayFlags = []string{
	"dv_V_GENEalignment",
	"dv_J_GENEalignment",
	"dv_IMGTjctaResults",
	"dv_eligibleD_GENE",
	"dv_JUNCTIONseq",
	"dv_V_REGIONalignment",
	"dv_V_REGIONtranlation",
	"dv_V_REGIONprotdisplay",
	"dv_V_REGIONmuttable",
	"dv_V_REGIONmutstats",
	"dv_V_REGIONhotspots",
	"dv_IMGTgappedVDJseq",
	"dv_IMGTAutomat",
}

// ProcessForm converts submitted form strings into typed parameters:
// True/true and False/false become booleans, None/null become nil, signed
// integers become ints and FASTA text loses carriage returns. The first
// value of each key is used.
func ProcessForm(form url.Values) Parameters {
	params := make(Parameters, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = coerce(values[0])
	}
	return params
}

func coerce(value string) any {
	switch value {
	case "True", "true":
		return true
	case "False", "false":
		return false
	case "None", "null":
		return nil
	}
	if isInteger(value) {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	if strings.HasPrefix(value, ">Seq") {
		return strings.ReplaceAll(value, "\r", "")
	}
	return value
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Full returns the parameters for a zip download run.
func (p Parameters) Full() Parameters {
	out := p.Clone()
	out["resultType"] = "excel"
	out["xv_outputtype"] = 1
	return out
}

// Detailed returns the parameters for a detailed text run: the analysis
// settings of p plus fixed output options.
func (p Parameters) Detailed() Parameters {
	out := Parameters{
		"outputType": "text",
		"resultType": "detailed",
	}
	for _, flag := range detailedDisplayFlags {
		out[flag] = false
	}
	for _, key := range detailedKeys {
		if v, ok := p[key]; ok {
			out[key] = v
		}
	}
	return out
}

// Encode renders the parameters as form values.
func (p Parameters) Encode() url.Values {
	form := url.Values{}
	for _, key := range p.Keys() {
		switch v := p[key].(type) {
		case nil:
		case bool:
			if v {
				form.Set(key, "True")
			} else {
				form.Set(key, "False")
			}
		case int:
			form.Set(key, strconv.Itoa(v))
		case string:
			form.Set(key, v)
		default:
			form.Set(key, toString(v))
		}
	}
	return form
}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toString(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return string(t)
	default:
		return ""
	}
}

// Sequence is one FASTA record sent to V-QUEST.
type Sequence struct {
	ID       string
	Sequence string
}

// FASTA renders records in the ">id\nsequence\n" layout V-QUEST accepts in
// its sequences field.
func FASTA(records []Sequence) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(">")
		sb.WriteString(r.ID)
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(r.Sequence))
		sb.WriteString("\n")
	}
	return sb.String()
}
