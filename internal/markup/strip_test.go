package markup

import "testing"

func TestStrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		in     string
		keep   []string
		expand []string
		want   string
	}{
		{name: "nested tags", in: "<p>Hello <b>World</b></p>", want: "Hello World"},
		{name: "script removed with content", in: "<script>drop()</script>Visible", want: "Visible"},
		{name: "comment", in: "<!-- hidden -->Kept", want: "Kept"},
		{name: "multiple comments", in: "a<!-- 1 -->b<!-- 2 -->c", want: "abc"},
		{name: "keep tag", in: "<p>Hello <b>World</b></p>", keep: []string{"b"}, want: "Hello <b>World</b>"},
		{name: "case insensitive scan", in: "<STYLE>p{}</Style>Body<BR/>", want: "Body"},
		{name: "case preserved for text", in: "<DIV>MiXeD</DIV>", want: "MiXeD"},
		{name: "option inside select", in: "pick<select><option>a</option></select>!", want: "pick!"},
		{name: "no expand", in: "<style>x</style>y", expand: []string{}, want: "xy"},
		{name: "custom expand", in: "<code>x()</code>text", expand: []string{"code"}, want: "text"},
		{name: "trims whitespace", in: "\n\t <i>x</i> \r\n", want: "x"},
		{name: "plain text", in: "no markup here", want: "no markup here"},
		{name: "empty", in: "", want: ""},
		{name: "unterminated tag is literal", in: "a < b", want: "a < b"},
		{name: "unterminated after real tag", in: "<i>x</i> 1 < 2", want: "x 1 < 2"},
		{name: "unterminated comment", in: "<!-- open forever", want: "<!-- open forever"},
		{name: "unterminated script", in: "<script>never closed", want: "never closed"},
		{name: "every occurrence removed", in: "<br>a<br>b", want: "ab"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Strip(tt.in, tt.keep, tt.expand); got != tt.want {
				t.Fatalf("Strip(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripKeepTagWithAttributes(t *testing.T) {
	t.Parallel()
	got := Strip("<div><em class='x'>hi</em></div>", []string{"em"}, nil)
	if got != "<em class='x'>hi</em>" {
		t.Fatalf("got %q", got)
	}
}

func TestIndexFold(t *testing.T) {
	t.Parallel()
	if i := indexFold(" abc<SCRIPT", "<script", 0); i != 4 {
		t.Fatalf("indexFold = %d", i)
	}
	if i := indexFold("<a>", "<a", 1); i != -1 {
		t.Fatalf("from offset ignored: %d", i)
	}
	if i := indexFold("é<b>", "<B", 0); i != 2 {
		t.Fatalf("byte offsets shifted: %d", i)
	}
}
