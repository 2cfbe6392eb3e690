package analysis

import "fmt"

// BuildInstruction renders the standalone analysis prompt for the user's
// messages inside excerpt.
func BuildInstruction(userName, excerpt string) string {
	return fmt.Sprintf(`# LINEトーク履歴分析タスク #

## 目的 ##
LINEのトーク履歴から特定ユーザーの話し方、口調、表現の特徴を抽出し、詳細に分析する。

## 対象ユーザー ##
ユーザー名: 「%[1]s」

## 分析項目 ##
1. よく使うフレーズや口癖（具体例を3つ以上挙げる）
2. 文末表現の特徴（「〜だよ」「〜かな」「〜です」など）
3. 文体（丁寧、カジュアル、省略形など）
4. 絵文字や顔文字の使用パターン
5. 特徴的な言い回し（独特の表現や言葉の選び方）
6. メッセージの長さの傾向（短文が多いか長文が多いか）
7. 句読点や記号の使い方
8. 会話の開始や終了の特徴的なパターン

## 分析手順 ##
1. トーク履歴データからユーザー「%[1]s」のメッセージを特定する
2. 各分析項目について詳細に調査する
3. 複数の具体例を挙げながら特徴を説明する
4. 見つかったユーザーメッセージの件数も報告する

## 出力形式 ##
「分析結果:」という見出しで始め、各分析項目を明確に示し、具体例を含めて説明すること。
最後に見つかったメッセージ件数を「〇〇件のメッセージを分析しました」という形式で記載すること。

## トーク履歴データ ##
%[2]s
`, userName, excerpt)
}
