package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なしはdemo", nil, CommandDemo},
		{"demo指定", []string{"demo"}, CommandDemo},
		{"devserver指定", []string{"devserver"}, CommandDevserver},
		{"healthcheck指定", []string{"healthcheck"}, CommandHealthcheck},
		{"未知のコマンドはdemo", []string{"bogus"}, CommandDemo},
		{"後続引数は無視", []string{"devserver", "--verbose"}, CommandDevserver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
