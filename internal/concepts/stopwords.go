package concepts

import "strings"

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an and or but in on at to for of with by from up about into through
		during before after above below between among this that these those i you
		he she it we they me him her us them my your his its our their mine yours
		ours theirs am is are was were be been being have has had having do does
		did doing will would could should may might must can shall here there when
		where why how what which who whom whose if unless until while because since
		although though example note see also more information documentation`) {
		stopwords[w] = struct{}{}
	}
}

func isStopword(s string) bool {
	_, ok := stopwords[strings.ToLower(s)]
	return ok
}
